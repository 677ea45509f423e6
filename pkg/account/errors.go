package account

import "errors"

var (
	ErrNotFound        = errors.New("account: not found")
	ErrFolderNotFound  = errors.New("account: folder not found")
	ErrInvalidAccount  = errors.New("account: invalid account")
	ErrInvalidFolder   = errors.New("account: invalid folder")
	ErrNotHOTP         = errors.New("account: counter applies to HOTP accounts only")
	ErrCounterOverflow = errors.New("account: counter overflow")
	ErrCorruptMetadata = errors.New("account: corrupt metadata document")
	ErrPersist         = errors.New("account: failed to persist")
)
