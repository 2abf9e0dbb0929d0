package config

import (
	"time"
)

// Config holds the application configuration.
type Config struct {
	MongoURI          string
	Database          string
	Collection        string
	KeyColumn         string
	SyntheticDataDir  string
	SyntheticDataRows int
	Timeout           time.Duration
}
