package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrNilPointer is returned when a nil pointer is provided to a loader
	ErrNilPointer = errors.New("nil pointer provided to config loader")

	// ErrLoadingEnvFile is returned when a .env file cannot be loaded
	ErrLoadingEnvFile = errors.New("failed to load env file")

	// ErrReadingConfigFile is returned when a configuration file cannot be read
	ErrReadingConfigFile = errors.New("failed to read config file")

	// ErrDecodingConfigFile is returned when a configuration file is not valid YAML or JSON
	ErrDecodingConfigFile = errors.New("failed to decode config file")
)
