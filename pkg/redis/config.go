package redis

import "time"

// Config describes how to reach a Redis server.
type Config struct {
	URL            string        // redis://:password@localhost:6379/0
	RetryAttempts  int           // connection attempts before giving up, at least one
	RetryInterval  time.Duration // pause between attempts
	ConnectTimeout time.Duration // upper bound for all attempts together
}

// DefaultConfig returns the settings used for options a handler leaves out.
func DefaultConfig() Config {
	return Config{
		URL:            "redis://localhost:6379/0",
		RetryAttempts:  3,
		RetryInterval:  time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}
