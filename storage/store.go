package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"babylon/docstore/appcontext"
	"babylon/docstore/frame"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const syncCollectionName = "dataSync"

// SyncLog represents a record in the dataSync collection.
type SyncLog struct {
	CollectionName  string    `bson:"collection_name"`
	SyncTimestamp   time.Time `bson:"sync_timestamp"`
	RecordsUploaded int64     `bson:"records_uploaded"`
}

// SyncResult holds the aggregate counts of an upsert synchronization.
type SyncResult struct {
	Matched  int64
	Modified int64
	Upserted int64
}

// Add accumulates another result into this one.
func (r *SyncResult) Add(other *SyncResult) {
	r.Matched += other.Matched
	r.Modified += other.Modified
	r.Upserted += other.Upserted
}

// String renders the result the way the upsert status line reports it.
func (r *SyncResult) String() string {
	return fmt.Sprintf("%d matched, %d modified, %d upserted", r.Matched, r.Modified, r.Upserted)
}

// Store exposes the document store helpers over a collection provider.
// Every operation takes an immutable Handle; the Store itself carries no
// database or collection selection state.
type Store struct {
	provider CollectionProvider
}

// NewStore creates a new Store.
func NewStore(provider CollectionProvider) *Store {
	return &Store{provider: provider}
}

// UpsertFrame synchronizes a frame into the handle's collection: one
// conditional write per record, keyed on keyColumn, inserted when absent and
// overwritten when present. The writes go out as a single unordered bulk
// request, so each record's write is independent of the others. A record
// without the key column fails the whole call before any write is issued.
func (s *Store) UpsertFrame(
	ctx context.Context,
	h Handle,
	f *frame.Frame,
	keyColumn string,
) (*SyncResult, error) {
	logger := appcontext.LoggerFromContext(ctx)

	if f == nil || f.Len() == 0 {
		return &SyncResult{}, nil // Nothing to upsert
	}

	var models []mongo.WriteModel
	for _, row := range f.Records() {
		key, ok := row[keyColumn]
		if !ok {
			return nil, frame.MissingKeyColumnError(keyColumn)
		}
		filter := bson.M{keyColumn: key}
		update := bson.M{"$set": row}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}

	collection := s.provider.Collection(h)
	result, err := collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return nil, fmt.Errorf("failed to perform bulk write for collection %s: %w", h, err)
	}

	syncResult := &SyncResult{
		Matched:  result.MatchedCount,
		Modified: result.ModifiedCount,
		Upserted: result.UpsertedCount,
	}
	logger.InfoContext(
		ctx,
		fmt.Sprintf("For %s - %s", h, syncResult),
		"matched", syncResult.Matched,
		"modified", syncResult.Modified,
		"upserted", syncResult.Upserted,
	)

	// Update sync log
	syncCollection := s.provider.Collection(Handle{Database: h.Database, Collection: syncCollectionName})
	syncLog := SyncLog{
		CollectionName:  h.Collection,
		SyncTimestamp:   time.Now(),
		RecordsUploaded: int64(f.Len()),
	}
	if _, err = syncCollection.InsertOne(ctx, syncLog); err != nil {
		return nil, fmt.Errorf("failed to insert into %s collection: %w", syncCollectionName, err)
	}

	return syncResult, nil
}

// ReadFrame queries the handle's collection and returns the matching
// documents as a frame. A nil filter matches everything. Column order is the
// sorted union of the observed field names; fields absent from a document
// are nil in its record.
func (s *Store) ReadFrame(ctx context.Context, h Handle, filter bson.M) (*frame.Frame, error) {
	records, err := s.provider.Collection(h).Find(ctx, normalizeFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame from %s: %w", h, err)
	}

	var columns []string
	for _, record := range records {
		for field := range record {
			if !slices.Contains(columns, field) {
				columns = append(columns, field)
			}
		}
	}
	slices.Sort(columns)

	if len(columns) == 0 {
		return &frame.Frame{}, nil
	}

	f, err := frame.New(columns)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		row := make(frame.Record, len(columns))
		for _, col := range columns {
			row[col] = record[col]
		}
		if err := f.Append(row); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// InsertOne inserts a single record into the handle's collection.
func (s *Store) InsertOne(ctx context.Context, h Handle, record frame.Record) error {
	logger := appcontext.LoggerFromContext(ctx)

	if _, err := s.provider.Collection(h).InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert document into %s: %w", h, err)
	}

	logger.InfoContext(ctx, "Inserted 1 document", "target", h.String())
	return nil
}

// FindOne returns a single record matching the filter, or nil when nothing
// matches.
func (s *Store) FindOne(ctx context.Context, h Handle, filter bson.M) (frame.Record, error) {
	record, err := s.provider.Collection(h).FindOne(ctx, normalizeFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to find document in %s: %w", h, err)
	}

	return record, nil
}

// DeleteOne deletes a single record matching the filter and returns the
// deleted count. Deleting an absent record is a no-op reported as zero.
func (s *Store) DeleteOne(ctx context.Context, h Handle, filter bson.M) (int64, error) {
	logger := appcontext.LoggerFromContext(ctx)

	deleted, err := s.provider.Collection(h).DeleteOne(ctx, normalizeFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to delete document in %s: %w", h, err)
	}

	logger.InfoContext(ctx, fmt.Sprintf("Deleted %d document in %s", deleted, h))
	return deleted, nil
}

// Count counts the records matching the filter. A nil filter counts all
// records in the collection.
func (s *Store) Count(ctx context.Context, h Handle, filter bson.M) (int64, error) {
	count, err := s.provider.Collection(h).CountDocuments(ctx, normalizeFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count documents in %s: %w", h, err)
	}

	return count, nil
}

// CleanCollection deletes every record in the handle's collection and
// returns the deleted count.
func (s *Store) CleanCollection(ctx context.Context, h Handle) (int64, error) {
	logger := appcontext.LoggerFromContext(ctx)

	deleted, err := s.provider.Collection(h).DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to clean collection %s: %w", h, err)
	}

	logger.InfoContext(ctx, fmt.Sprintf("Cleaned collection: %s", h), "deleted", deleted)
	return deleted, nil
}

// ListDatabases retrieves the existing database names.
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	return s.provider.ListDatabaseNames(ctx)
}

// DropDatabase drops a database. Dropping an absent database is a reported
// no-op, not an error; the returned bool says whether a drop happened.
func (s *Store) DropDatabase(ctx context.Context, database string) (bool, error) {
	logger := appcontext.LoggerFromContext(ctx)

	names, err := s.provider.ListDatabaseNames(ctx)
	if err != nil {
		return false, err
	}
	if !slices.Contains(names, database) {
		logger.InfoContext(ctx, fmt.Sprintf("This database doesn't exist: %s", database))
		return false, nil
	}

	if err := s.provider.DropDatabase(ctx, database); err != nil {
		return false, err
	}

	logger.InfoContext(ctx, fmt.Sprintf("Deleted database: %s", database))
	return true, nil
}

// ListCollections retrieves the collection names in a database.
func (s *Store) ListCollections(ctx context.Context, database string) ([]string, error) {
	return s.provider.ListCollectionNames(ctx, database)
}

// DropCollection drops the handle's collection. Dropping an absent
// collection is a reported no-op, not an error.
func (s *Store) DropCollection(ctx context.Context, h Handle) (bool, error) {
	logger := appcontext.LoggerFromContext(ctx)

	names, err := s.provider.ListCollectionNames(ctx, h.Database)
	if err != nil {
		return false, err
	}
	if !slices.Contains(names, h.Collection) {
		logger.InfoContext(ctx, fmt.Sprintf("This collection doesn't exist: %s", h))
		return false, nil
	}

	if err := s.provider.Collection(h).Drop(ctx); err != nil {
		return false, err
	}

	logger.InfoContext(ctx, fmt.Sprintf("Deleted collection: %s", h))
	return true, nil
}

// normalizeFilter maps a nil filter onto the match-everything filter.
func normalizeFilter(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}

	return filter
}
