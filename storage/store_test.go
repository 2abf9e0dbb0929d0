package storage_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"babylon/docstore/frame"
	"babylon/docstore/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mock for DataStore interface.
type mockDataStore struct {
	bulkWriteFunc  func(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	insertOneFunc  func(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	findOneFunc    func(ctx context.Context, filter interface{}) (frame.Record, error)
	findFunc       func(ctx context.Context, filter interface{}) ([]frame.Record, error)
	deleteOneFunc  func(ctx context.Context, filter interface{}) (int64, error)
	deleteManyFunc func(ctx context.Context, filter interface{}) (int64, error)
	countFunc      func(ctx context.Context, filter interface{}) (int64, error)
	dropFunc       func(ctx context.Context) error
}

func (m *mockDataStore) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	if m.bulkWriteFunc != nil {
		return m.bulkWriteFunc(ctx, models, opts...)
	}
	return &mongo.BulkWriteResult{}, nil
}

func (m *mockDataStore) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if m.insertOneFunc != nil {
		return m.insertOneFunc(ctx, document, opts...)
	}
	return &mongo.InsertOneResult{}, nil
}

func (m *mockDataStore) FindOne(ctx context.Context, filter interface{}) (frame.Record, error) {
	if m.findOneFunc != nil {
		return m.findOneFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockDataStore) Find(ctx context.Context, filter interface{}) ([]frame.Record, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockDataStore) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	if m.deleteOneFunc != nil {
		return m.deleteOneFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockDataStore) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	if m.deleteManyFunc != nil {
		return m.deleteManyFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockDataStore) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockDataStore) Drop(ctx context.Context) error {
	if m.dropFunc != nil {
		return m.dropFunc(ctx)
	}
	return nil
}

// Mock for CollectionProvider interface.
type mockCollectionProvider struct {
	collectionFunc          func(h storage.Handle) storage.DataStore
	listDatabaseNamesFunc   func(ctx context.Context) ([]string, error)
	listCollectionNamesFunc func(ctx context.Context, database string) ([]string, error)
	dropDatabaseFunc        func(ctx context.Context, database string) error
}

func (m *mockCollectionProvider) Collection(h storage.Handle) storage.DataStore {
	if m.collectionFunc != nil {
		return m.collectionFunc(h)
	}
	return &mockDataStore{}
}

func (m *mockCollectionProvider) ListDatabaseNames(ctx context.Context) ([]string, error) {
	if m.listDatabaseNamesFunc != nil {
		return m.listDatabaseNamesFunc(ctx)
	}
	return nil, nil
}

func (m *mockCollectionProvider) ListCollectionNames(ctx context.Context, database string) ([]string, error) {
	if m.listCollectionNamesFunc != nil {
		return m.listCollectionNamesFunc(ctx, database)
	}
	return nil, nil
}

func (m *mockCollectionProvider) DropDatabase(ctx context.Context, database string) error {
	if m.dropDatabaseFunc != nil {
		return m.dropDatabaseFunc(ctx, database)
	}
	return nil
}

func testHandle(t *testing.T) storage.Handle {
	t.Helper()
	h, err := storage.NewHandle("testdb", "people")
	if err != nil {
		t.Fatalf("NewHandle failed: %v", err)
	}
	return h
}

func testFrame(t *testing.T, rows []frame.Record) *frame.Frame {
	t.Helper()
	f, err := frame.FromRecords([]string{"k", "v"}, rows)
	if err != nil {
		t.Fatalf("FromRecords failed: %v", err)
	}
	return f
}

func TestNewStore(t *testing.T) {
	store := storage.NewStore(&mockCollectionProvider{})
	if store == nil {
		t.Error("NewStore returned nil")
	}
}

func TestUpsertFrame_FreshCollection(t *testing.T) {
	ctx := context.Background()
	f := testFrame(t, []frame.Record{
		{"k": int64(1), "v": "a"},
		{"k": int64(2), "v": "b"},
	})

	mockDS := &mockDataStore{
		bulkWriteFunc: func(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
			if len(models) != 2 {
				t.Errorf("Expected 2 write models, got %d", len(models))
			}
			first, ok := models[0].(*mongo.UpdateOneModel)
			if !ok {
				t.Fatalf("Expected UpdateOneModel, got %T", models[0])
			}
			if !reflect.DeepEqual(first.Filter, bson.M{"k": int64(1)}) {
				t.Errorf("Expected filter on first key, got %v", first.Filter)
			}
			if first.Upsert == nil || !*first.Upsert {
				t.Error("Expected upsert to be enabled")
			}
			return &mongo.BulkWriteResult{UpsertedCount: 2}, nil
		},
		insertOneFunc: func(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
			syncLog, ok := document.(storage.SyncLog)
			if !ok {
				t.Errorf("Expected SyncLog document, got %T", document)
			}
			if syncLog.CollectionName != "people" {
				t.Errorf("Expected CollectionName %s, got %s", "people", syncLog.CollectionName)
			}
			if syncLog.RecordsUploaded != 2 {
				t.Errorf("Expected RecordsUploaded 2, got %d", syncLog.RecordsUploaded)
			}
			return &mongo.InsertOneResult{}, nil
		},
	}

	provider := &mockCollectionProvider{
		collectionFunc: func(h storage.Handle) storage.DataStore {
			if h.Collection != "people" && h.Collection != "dataSync" {
				t.Errorf("Expected collection people or dataSync, got %s", h.Collection)
			}
			if h.Database != "testdb" {
				t.Errorf("Expected database testdb, got %s", h.Database)
			}
			return mockDS
		},
	}

	store := storage.NewStore(provider)
	result, err := store.UpsertFrame(ctx, testHandle(t), f, "k")
	if err != nil {
		t.Fatalf("UpsertFrame failed: %v", err)
	}
	if result.Matched != 0 || result.Upserted != 2 {
		t.Errorf("Expected matched=0 upserted=2, got %+v", result)
	}
}

func TestUpsertFrame_RepeatRunCounts(t *testing.T) {
	ctx := context.Background()
	f := testFrame(t, []frame.Record{
		{"k": int64(1), "v": "c"},
		{"k": int64(2), "v": "b"},
	})

	mockDS := &mockDataStore{
		bulkWriteFunc: func(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
			// Both keys already stored, only the first record differs.
			return &mongo.BulkWriteResult{MatchedCount: 2, ModifiedCount: 1}, nil
		},
	}
	provider := &mockCollectionProvider{
		collectionFunc: func(h storage.Handle) storage.DataStore { return mockDS },
	}

	store := storage.NewStore(provider)
	result, err := store.UpsertFrame(ctx, testHandle(t), f, "k")
	if err != nil {
		t.Fatalf("UpsertFrame failed: %v", err)
	}
	if result.Matched != 2 || result.Modified != 1 || result.Upserted != 0 {
		t.Errorf("Expected matched=2 modified=1 upserted=0, got %+v", result)
	}
}

func TestUpsertFrame_EmptyFrame(t *testing.T) {
	ctx := context.Background()
	called := false
	provider := &mockCollectionProvider{
		collectionFunc: func(h storage.Handle) storage.DataStore {
			called = true
			return &mockDataStore{}
		},
	}

	store := storage.NewStore(provider)
	f, err := frame.New([]string{"k"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	result, err := store.UpsertFrame(ctx, testHandle(t), f, "k")
	if err != nil {
		t.Fatalf("UpsertFrame failed for empty frame: %v", err)
	}
	if result.Matched != 0 || result.Modified != 0 || result.Upserted != 0 {
		t.Errorf("Expected zero result, got %+v", result)
	}
	if called {
		t.Error("Expected no collection access for an empty frame")
	}
}

func TestUpsertFrame_MissingKeyColumn(t *testing.T) {
	ctx := context.Background()
	f := testFrame(t, []frame.Record{{"k": int64(1), "v": "a"}})

	wrote := false
	mockDS := &mockDataStore{
		bulkWriteFunc: func(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
			wrote = true
			return &mongo.BulkWriteResult{}, nil
		},
	}
	provider := &mockCollectionProvider{
		collectionFunc: func(h storage.Handle) storage.DataStore { return mockDS },
	}

	store := storage.NewStore(provider)
	_, err := store.UpsertFrame(ctx, testHandle(t), f, "id")
	if err == nil {
		t.Fatal("Expected an error for a missing key column")
	}
	if wrote {
		t.Error("Expected no write to be attempted when the key column is missing")
	}
}

func TestUpsertFrame_BulkWriteError(t *testing.T) {
	ctx := context.Background()
	f := testFrame(t, []frame.Record{{"k": int64(1), "v": "a"}})
	expectedErr := errors.New("bulk write error")

	mockDS := &mockDataStore{
		bulkWriteFunc: func(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
			return nil, expectedErr
		},
	}
	provider := &mockCollectionProvider{
		collectionFunc: func(h storage.Handle) storage.DataStore { return mockDS },
	}

	store := storage.NewStore(provider)
	_, err := store.UpsertFrame(ctx, testHandle(t), f, "k")
	if err == nil || !strings.Contains(err.Error(), expectedErr.Error()) {
		t.Errorf("Expected bulk write error, got: %v", err)
	}
}

func TestUpsertFrame_SyncLogError(t *testing.T) {
	ctx := context.Background()
	f := testFrame(t, []frame.Record{{"k": int64(1), "v": "a"}})
	expectedErr := errors.New("sync log error")

	mockDS := &mockDataStore{
		bulkWriteFunc: func(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
			return &mongo.BulkWriteResult{UpsertedCount: 1}, nil
		},
		insertOneFunc: func(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
			return nil, expectedErr
		},
	}
	provider := &mockCollectionProvider{
		collectionFunc: func(h storage.Handle) storage.DataStore { return mockDS },
	}

	store := storage.NewStore(provider)
	_, err := store.UpsertFrame(ctx, testHandle(t), f, "k")
	if err == nil || !strings.Contains(err.Error(), expectedErr.Error()) {
		t.Errorf("Expected sync log error, got: %v", err)
	}
}

func TestReadFrame_SortedColumnsAndNilFill(t *testing.T) {
	ctx := context.Background()
	provider := &mockCollectionProvider{
		collectionFunc: func(h storage.Handle) storage.DataStore {
			return &mockDataStore{
				findFunc: func(ctx context.Context, filter interface{}) ([]frame.Record, error) {
					return []frame.Record{
						{"v": "a", "k": int64(1)},
						{"k": int64(2)},
					}, nil
				},
			}
		},
	}

	store := storage.NewStore(provider)
	f, err := store.ReadFrame(ctx, testHandle(t), nil)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !reflect.DeepEqual(f.Columns(), []string{"k", "v"}) {
		t.Errorf("Expected sorted columns [k v], got %v", f.Columns())
	}
	rows := f.Records()
	if len(rows) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(rows))
	}
	if rows[1]["v"] != nil {
		t.Errorf("Expected nil fill for missing field, got %v", rows[1]["v"])
	}
}

func TestReadFrame_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(&mockCollectionProvider{})
	f, err := store.ReadFrame(ctx, testHandle(t), nil)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f.Len() != 0 {
		t.Errorf("Expected an empty frame, got %d records", f.Len())
	}
}

func TestFindOne_NoMatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(&mockCollectionProvider{})
	record, err := store.FindOne(ctx, testHandle(t), bson.M{"k": int64(99)})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if record != nil {
		t.Errorf("Expected nil record for no match, got %v", record)
	}
}

func TestDropDatabase_NoOp(t *testing.T) {
	ctx := context.Background()
	dropped := false
	provider := &mockCollectionProvider{
		listDatabaseNamesFunc: func(ctx context.Context) ([]string, error) {
			return []string{"admin", "local"}, nil
		},
		dropDatabaseFunc: func(ctx context.Context, database string) error {
			dropped = true
			return nil
		},
	}

	store := storage.NewStore(provider)
	ok, err := store.DropDatabase(ctx, "missing")
	if err != nil {
		t.Fatalf("DropDatabase failed: %v", err)
	}
	if ok {
		t.Error("Expected a no-op for an absent database")
	}
	if dropped {
		t.Error("Expected no drop request for an absent database")
	}
}

func TestDropDatabase_Drops(t *testing.T) {
	ctx := context.Background()
	var droppedName string
	provider := &mockCollectionProvider{
		listDatabaseNamesFunc: func(ctx context.Context) ([]string, error) {
			return []string{"admin", "testdb"}, nil
		},
		dropDatabaseFunc: func(ctx context.Context, database string) error {
			droppedName = database
			return nil
		},
	}

	store := storage.NewStore(provider)
	ok, err := store.DropDatabase(ctx, "testdb")
	if err != nil {
		t.Fatalf("DropDatabase failed: %v", err)
	}
	if !ok {
		t.Error("Expected the database to be dropped")
	}
	if droppedName != "testdb" {
		t.Errorf("Expected drop of testdb, got %q", droppedName)
	}
}

func TestDropCollection_NoOp(t *testing.T) {
	ctx := context.Background()
	dropped := false
	provider := &mockCollectionProvider{
		listCollectionNamesFunc: func(ctx context.Context, database string) ([]string, error) {
			return []string{"other"}, nil
		},
		collectionFunc: func(h storage.Handle) storage.DataStore {
			return &mockDataStore{
				dropFunc: func(ctx context.Context) error {
					dropped = true
					return nil
				},
			}
		},
	}

	store := storage.NewStore(provider)
	ok, err := store.DropCollection(ctx, testHandle(t))
	if err != nil {
		t.Fatalf("DropCollection failed: %v", err)
	}
	if ok || dropped {
		t.Error("Expected a no-op for an absent collection")
	}
}

func TestDropCollection_Drops(t *testing.T) {
	ctx := context.Background()
	dropped := false
	provider := &mockCollectionProvider{
		listCollectionNamesFunc: func(ctx context.Context, database string) ([]string, error) {
			return []string{"people"}, nil
		},
		collectionFunc: func(h storage.Handle) storage.DataStore {
			return &mockDataStore{
				dropFunc: func(ctx context.Context) error {
					dropped = true
					return nil
				},
			}
		},
	}

	store := storage.NewStore(provider)
	ok, err := store.DropCollection(ctx, testHandle(t))
	if err != nil {
		t.Fatalf("DropCollection failed: %v", err)
	}
	if !ok || !dropped {
		t.Error("Expected the collection to be dropped")
	}
}

func TestCleanCollection(t *testing.T) {
	ctx := context.Background()
	provider := &mockCollectionProvider{
		collectionFunc: func(h storage.Handle) storage.DataStore {
			return &mockDataStore{
				deleteManyFunc: func(ctx context.Context, filter interface{}) (int64, error) {
					if !reflect.DeepEqual(filter, bson.M{}) {
						t.Errorf("Expected the match-everything filter, got %v", filter)
					}
					return 7, nil
				},
			}
		},
	}

	store := storage.NewStore(provider)
	deleted, err := store.CleanCollection(ctx, testHandle(t))
	if err != nil {
		t.Fatalf("CleanCollection failed: %v", err)
	}
	if deleted != 7 {
		t.Errorf("Expected 7 deleted, got %d", deleted)
	}
}

func TestCount_NilFilterCountsAll(t *testing.T) {
	ctx := context.Background()
	provider := &mockCollectionProvider{
		collectionFunc: func(h storage.Handle) storage.DataStore {
			return &mockDataStore{
				countFunc: func(ctx context.Context, filter interface{}) (int64, error) {
					if !reflect.DeepEqual(filter, bson.M{}) {
						t.Errorf("Expected the match-everything filter, got %v", filter)
					}
					return 3, nil
				},
			}
		},
	}

	store := storage.NewStore(provider)
	count, err := store.Count(ctx, testHandle(t), nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
}
