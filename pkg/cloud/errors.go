package cloud

import "errors"

var (
	ErrNotFound       = errors.New("cloud: file not found")
	ErrAuthentication = errors.New("cloud: authentication failed")
	ErrNetwork        = errors.New("cloud: network failure")
	ErrInvalidConfig  = errors.New("cloud: invalid provider configuration")
	ErrInvalidName    = errors.New("cloud: invalid file name")
	ErrUnknownDriver  = errors.New("cloud: unknown driver")
)
