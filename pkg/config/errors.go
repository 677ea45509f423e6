package config

import "errors"

var (
	ErrNilPointer    = errors.New("config: nil pointer provided to loader")
	ErrReadFile      = errors.New("config: failed to read config file")
	ErrParsingConfig = errors.New("config: failed to parse configuration")
)
