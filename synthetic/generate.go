package synthetic

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"babylon/docstore/config"
	"babylon/docstore/frame"
	"babylon/docstore/storage"
)

const syntheticFileName = "test-synthetic-data.csv"

// GenerateSyntheticData creates a CSV file with synthetic data.
func GenerateSyntheticData(ctx context.Context, rows int, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}

	f, err := GenerateFrame(rows)
	if err != nil {
		return err
	}

	filePath := filepath.Join(dir, syntheticFileName)
	if err := frame.WriteCSV(ctx, f, filePath); err != nil {
		return fmt.Errorf("failed to write synthetic data: %w", err)
	}

	return nil
}

// GenerateAndPersistSyntheticData generates a synthetic frame and upserts it
// into the given handle.
func GenerateAndPersistSyntheticData(
	ctx context.Context,
	store *storage.Store,
	h storage.Handle,
	rows int,
) (*storage.SyncResult, error) {
	f, err := GenerateFrame(rows)
	if err != nil {
		return nil, err
	}

	result, err := store.UpsertFrame(ctx, h, f, "_id")
	if err != nil {
		return nil, fmt.Errorf("failed to persist synthetic data: %w", err)
	}

	return result, nil
}

// RunGenerateSyntheticData generates synthetic data for testing.
func RunGenerateSyntheticData(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	genFlagSet := flag.NewFlagSet("generate-synthetic-data", flag.ExitOnError)
	rows := genFlagSet.Int("rows", cfg.SyntheticDataRows, "Number of rows to generate")
	dir := genFlagSet.String("dir", cfg.SyntheticDataDir, "Directory to write synthetic data to")
	persistToMongo := genFlagSet.Bool("persist-to-mongo", false, "Persist synthetic data to MongoDB")
	database := genFlagSet.String("database", cfg.Database, "Target database when persisting")
	collection := genFlagSet.String("collection", "synthetic-ingest", "Target collection when persisting")
	if err := genFlagSet.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if *persistToMongo {
		client, err := storage.ConnectToMongoDB(ctx, cfg.MongoURI)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer func() {
			if deferErr := client.Disconnect(ctx); deferErr != nil {
				logger.ErrorContext(ctx, "Error disconnecting from MongoDB", "error", deferErr)
			}
		}()

		h, err := storage.NewHandle(*database, *collection)
		if err != nil {
			return err
		}

		store := storage.NewStore(storage.NewMongoProvider(client))
		if _, err := GenerateAndPersistSyntheticData(ctx, store, h, *rows); err != nil {
			return err
		}
		logger.InfoContext(ctx, "Synthetic data generated and persisted successfully")
		return nil
	}

	logger.InfoContext(ctx, "Generating synthetic data")
	if err := GenerateSyntheticData(ctx, *rows, *dir); err != nil {
		return fmt.Errorf("failed to generate synthetic data: %w", err)
	}
	logger.InfoContext(ctx, "Synthetic data generated successfully")
	return nil
}
