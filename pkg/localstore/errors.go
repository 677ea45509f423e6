package localstore

import "errors"

var (
	ErrNotFound                = errors.New("localstore: document not found")
	ErrInvalidPath             = errors.New("localstore: invalid path")
	ErrInvalidConfig           = errors.New("localstore: invalid configuration")
	ErrFailedToCreateDirectory = errors.New("localstore: failed to create directory")
	ErrFailedToRead            = errors.New("localstore: failed to read document")
	ErrFailedToWrite           = errors.New("localstore: failed to write document")
	ErrFailedToDelete          = errors.New("localstore: failed to delete document")
	ErrInvalidProtector        = errors.New("localstore: invalid device protector")
)
