package storage

import (
	"context"
	"errors"
	"fmt"

	"babylon/docstore/appcontext"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errMissingMongoURI = errors.New("please specify a MongoDB instance URI")

// ConnectToMongoDB establishes a connection to MongoDB and verifies it with a ping.
// An empty URI is a configuration error and fails before any dial is attempted.
func ConnectToMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errMissingMongoURI
	}

	logger := appcontext.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "Attempting to connect to MongoDB", "uri", uri)

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.InfoContext(ctx, "Successfully established connection to MongoDB")
	return client, nil
}
