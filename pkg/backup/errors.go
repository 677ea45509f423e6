package backup

import "errors"

var (
	ErrInvalidFormat    = errors.New("backup: invalid backup format")
	ErrChecksumMismatch = errors.New("backup: checksum mismatch")
	ErrSettingsRestore  = errors.New("backup: settings could not be restored")
	ErrMissingSecret    = errors.New("backup: account has no secret key")
)
