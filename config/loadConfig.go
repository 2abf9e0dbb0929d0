package config

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/viper"
)

// Default values for testing.
const (
	defaultTimeoutSeconds    = 30
	defaultMongoHost         = "localhost"
	defaultMongoPort         = "27017"
	defaultDatabase          = "docstore"
	defaultCollection        = "records"
	defaultKeyColumn         = "_id"
	defaultSyntheticDataDir  = "tmp/synthetic"
	defaultSyntheticDataRows = 100
	envMongoURI              = "MONGO_URI"
	envMongoHost             = "MONGO_HOST"
	envMongoPort             = "MONGO_PORT"
	envMongoUser             = "MONGO_USER"
	envMongoPassword         = "MONGO_PASSWORD"
	envDatabase              = "DOCSTORE_DATABASE"
	envCollection            = "DOCSTORE_COLLECTION"
	envKeyColumn             = "DOCSTORE_KEY_COLUMN"
	envTimeoutSeconds        = "DOCSTORE_TIMEOUT_SECONDS"
	envSyntheticDataDir      = "DOCSTORE_SYNTHETIC_DIR"
	envSyntheticDataRows     = "DOCSTORE_SYNTHETIC_ROWS"
)

// LoadConfig loads the application configuration from environment variables or uses default values.
func LoadConfig(ctx context.Context, logger *slog.Logger) *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(envMongoHost, defaultMongoHost)
	v.SetDefault(envMongoPort, defaultMongoPort)
	v.SetDefault(envDatabase, defaultDatabase)
	v.SetDefault(envCollection, defaultCollection)
	v.SetDefault(envKeyColumn, defaultKeyColumn)
	v.SetDefault(envTimeoutSeconds, defaultTimeoutSeconds)
	v.SetDefault(envSyntheticDataDir, defaultSyntheticDataDir)
	v.SetDefault(envSyntheticDataRows, defaultSyntheticDataRows)

	mongoURI := formatMongoURI(ctx, v, logger)

	timeoutSeconds := v.GetInt(envTimeoutSeconds)
	if timeoutSeconds <= 0 {
		logger.WarnContext(
			ctx,
			"Invalid value for timeout, using default",
			"value", timeoutSeconds,
			"default", defaultTimeoutSeconds,
		)
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &Config{
		MongoURI:          mongoURI,
		Database:          v.GetString(envDatabase),
		Collection:        v.GetString(envCollection),
		KeyColumn:         v.GetString(envKeyColumn),
		SyntheticDataDir:  v.GetString(envSyntheticDataDir),
		SyntheticDataRows: v.GetInt(envSyntheticDataRows),
		Timeout:           time.Duration(timeoutSeconds) * time.Second,
	}
}

// formatMongoURI formats mongo settings to a url and returns the result.
func formatMongoURI(
	ctx context.Context,
	v *viper.Viper,
	logger *slog.Logger,
) string {
	mongoURI := v.GetString(envMongoURI)
	if mongoURI != "" {
		logger.DebugContext(ctx, "Using MongoDB URI from environment variable", "uri", mongoURI)
		return mongoURI
	}

	mongoHost := v.GetString(envMongoHost)
	mongoPort := v.GetString(envMongoPort)
	hostPort := net.JoinHostPort(mongoHost, mongoPort)

	mongoUser := v.GetString(envMongoUser)
	mongoPassword := v.GetString(envMongoPassword)

	if mongoUser != "" && mongoPassword != "" {
		mongoURI = fmt.Sprintf(
			"mongodb://%s:%s@%s/?authSource=admin",
			mongoUser,
			mongoPassword,
			hostPort,
		)
		logger.DebugContext(ctx, "Created MongoDB URI from user, password, and host", "uri", mongoURI)
	} else {
		mongoURI = fmt.Sprintf("mongodb://%s/", hostPort)
		logger.DebugContext(ctx, "Created MongoDB URI from host", "uri", mongoURI)
	}
	return mongoURI
}
