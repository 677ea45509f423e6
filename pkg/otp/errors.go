package otp

import "errors"

var (
	ErrEmptySecret          = errors.New("otp: empty secret")
	ErrInvalidSecret        = errors.New("otp: invalid secret")
	ErrInvalidDigits        = errors.New("otp: digits must be between 6 and 8")
	ErrInvalidPeriod        = errors.New("otp: period must be positive")
	ErrInvalidCounter       = errors.New("otp: counter must not be negative")
	ErrUnsupportedAlgorithm = errors.New("otp: unsupported algorithm")
	ErrUnsupportedType      = errors.New("otp: unsupported type")
	ErrInvalidURI           = errors.New("otp: invalid otpauth uri")
	ErrMissingSecret        = errors.New("otp: uri has no secret")
)
