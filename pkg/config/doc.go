// Package config loads typed configuration structs from three layers, each
// overriding the previous one:
//
//  1. envDefault tags on the struct
//  2. an optional YAML file (yaml tags)
//  3. the process environment plus optional .env files (env tags)
//
// Variables already present in the environment win over .env files. Nothing
// is cached and the process environment is never modified, so tests can load
// the same type repeatedly with different inputs.
//
//	var cfg otpkeeper.Config
//	err := config.Load(&cfg,
//		config.WithFile("/etc/otpkeeper.yaml"),
//		config.WithEnvFiles(".env"),
//		config.WithPrefix("OTPKEEPER_"),
//	)
//
// Errors match ErrNilPointer, ErrReadFile or ErrParsingConfig.
package config
