package storage

import (
	"context"
	"errors"
	"fmt"

	"babylon/docstore/frame"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ---- Abstractions for Testability ----

// DataStore defines the interface for collection-scoped database operations.
type DataStore interface {
	BulkWrite(
		ctx context.Context,
		models []mongo.WriteModel,
		opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	InsertOne(
		ctx context.Context,
		document interface{},
		opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}) (frame.Record, error)
	Find(ctx context.Context, filter interface{}) ([]frame.Record, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	Drop(ctx context.Context) error
}

// CollectionProvider defines the interface for obtaining collections and for
// the database-level operations that are not scoped to a single collection.
type CollectionProvider interface {
	Collection(h Handle) DataStore
	ListDatabaseNames(ctx context.Context) ([]string, error)
	ListCollectionNames(ctx context.Context, database string) ([]string, error)
	DropDatabase(ctx context.Context, database string) error
}

// MongoCollection adapts *mongo.Collection to DataStore.
type MongoCollection struct {
	*mongo.Collection
}

// BulkWrite performs a bulk write operation.
func (c *MongoCollection) BulkWrite(
	ctx context.Context,
	models []mongo.WriteModel,
	opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	result, err := c.Collection.BulkWrite(ctx, models, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform BulkWrite: %w", err)
	}

	return result, nil
}

// InsertOne inserts a single document.
func (c *MongoCollection) InsertOne(
	ctx context.Context,
	document interface{},
	opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	result, err := c.Collection.InsertOne(ctx, document, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform InsertOne: %w", err)
	}

	return result, nil
}

// FindOne returns the first document matching the filter, or a nil record
// when nothing matches.
func (c *MongoCollection) FindOne(ctx context.Context, filter interface{}) (frame.Record, error) {
	var doc bson.M
	err := c.Collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to perform FindOne: %w", err)
	}

	return frame.Record(doc), nil
}

// Find returns all documents matching the filter.
func (c *MongoCollection) Find(ctx context.Context, filter interface{}) ([]frame.Record, error) {
	cursor, err := c.Collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to perform Find: %w", err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode Find cursor: %w", err)
	}

	records := make([]frame.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, frame.Record(doc))
	}

	return records, nil
}

// DeleteOne deletes a single matching document and returns the deleted count.
func (c *MongoCollection) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	result, err := c.Collection.DeleteOne(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to perform DeleteOne: %w", err)
	}

	return result.DeletedCount, nil
}

// DeleteMany deletes all matching documents and returns the deleted count.
func (c *MongoCollection) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	result, err := c.Collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to perform DeleteMany: %w", err)
	}

	return result.DeletedCount, nil
}

// CountDocuments counts the documents matching the filter.
func (c *MongoCollection) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	count, err := c.Collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to perform CountDocuments: %w", err)
	}

	return count, nil
}

// Drop drops the underlying collection.
func (c *MongoCollection) Drop(ctx context.Context) error {
	if err := c.Collection.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	return nil
}

// MongoProvider adapts *mongo.Client to CollectionProvider.
type MongoProvider struct {
	client *mongo.Client
}

// NewMongoProvider creates a new MongoProvider.
func NewMongoProvider(client *mongo.Client) *MongoProvider {
	return &MongoProvider{client: client}
}

// Collection returns a DataStore for the given handle.
func (p *MongoProvider) Collection(h Handle) DataStore {
	return &MongoCollection{p.client.Database(h.Database).Collection(h.Collection)}
}

// ListDatabaseNames lists the database names visible to the client.
func (p *MongoProvider) ListDatabaseNames(ctx context.Context) ([]string, error) {
	names, err := p.client.ListDatabaseNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list database names: %w", err)
	}

	return names, nil
}

// ListCollectionNames lists the collection names in a database.
func (p *MongoProvider) ListCollectionNames(ctx context.Context, database string) ([]string, error) {
	names, err := p.client.Database(database).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collection names for %s: %w", database, err)
	}

	return names, nil
}

// DropDatabase drops the named database.
func (p *MongoProvider) DropDatabase(ctx context.Context, database string) error {
	if err := p.client.Database(database).Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", database, err)
	}

	return nil
}
