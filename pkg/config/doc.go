// Package config loads process configuration.
//
// Two sources are supported:
//
//   - Environment variables, parsed into tagged structs with
//     github.com/caarlos0/env/v11. An optional .env file is loaded first
//     with github.com/joho/godotenv. Each struct type is parsed once per
//     process and cached; ResetCache clears the cache in tests.
//   - YAML or JSON documents (LoadFile, Decode) decoded with gopkg.in/yaml.v3
//     after ${VAR} expansion from the environment.
//
// # Usage
//
//	type Settings struct {
//	    ConfigPath string `env:"TUBEWORKER_CONFIG" envDefault:"tubeworker.yaml"`
//	}
//
//	var s Settings
//	config.MustLoad(&s)
//
//	var fleet queue.Config
//	if err := config.LoadFile(s.ConfigPath, &fleet); err != nil {
//	    return err
//	}
//
// # Error Handling
//
// All failures wrap one of the package sentinels (ErrParsingConfig,
// ErrReadingConfigFile, ErrDecodingConfigFile, ...) and can be checked with
// errors.Is.
package config
