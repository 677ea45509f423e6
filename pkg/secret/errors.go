package secret

import "errors"

var (
	ErrEmpty            = errors.New("secret: empty secret")
	ErrInvalidFormat    = errors.New("secret: invalid base32 format")
	ErrInvalidSize      = errors.New("secret: invalid size")
	ErrFailedToGenerate = errors.New("secret: failed to generate secret")
)
