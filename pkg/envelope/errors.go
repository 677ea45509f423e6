package envelope

import "errors"

var (
	ErrEmptyPassword      = errors.New("envelope: password must not be empty")
	ErrInvalidEnvelope    = errors.New("envelope: malformed envelope")
	ErrUnsupportedVersion = errors.New("envelope: unsupported version")
	ErrIntegrity          = errors.New("envelope: integrity check failed, wrong password or corrupted data")
	ErrEncryptionFailed   = errors.New("envelope: encryption failed")
	ErrDecryptionFailed   = errors.New("envelope: decryption failed")
)
