// main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"babylon/docstore/appcontext"
	"babylon/docstore/config"
	"babylon/docstore/frame"
	"babylon/docstore/storage"
	"babylon/docstore/synthetic"

	"go.mongodb.org/mongo-driver/bson"
)

const minArgs = 2

var errNoInputFiles = errors.New("no CSV files were given")
var errInvalidFieldArg = errors.New("field arguments must look like name=value")

func main() {
	// Create the logger instance at the very beginning.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if len(os.Args) < minArgs {
		logger.Error("Usage: docstore <command> [options]")
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	if err := run(logger, command, args); err != nil {
		logger.Error("Application terminated with an error", "error", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, command string, args []string) error {
	baseCtx := appcontext.WithLogger(context.Background(), logger)
	cfg := config.LoadConfig(baseCtx, logger)

	ctx, cancel := context.WithTimeout(baseCtx, cfg.Timeout)
	defer cancel()

	switch command {
	case "generate-synthetic-data":
		return synthetic.RunGenerateSyntheticData(ctx, logger, args, cfg)
	case "upsert":
		return runUpsert(ctx, logger, args, cfg)
	case "export":
		return runExport(ctx, logger, args, cfg)
	case "insert":
		return runInsert(ctx, logger, args, cfg)
	case "find":
		return runFind(ctx, logger, args, cfg)
	case "delete":
		return runDelete(ctx, logger, args, cfg)
	case "count":
		return runCount(ctx, logger, args, cfg)
	case "clean":
		return runClean(ctx, logger, args, cfg)
	case "databases":
		return runDatabases(ctx, logger, args, cfg)
	case "collections":
		return runCollections(ctx, logger, args, cfg)
	case "drop-database":
		return runDropDatabase(ctx, logger, args, cfg)
	case "drop-collection":
		return runDropCollection(ctx, logger, args, cfg)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// withStore connects to MongoDB, runs fn against a Store, and disconnects.
func withStore(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	fn func(ctx context.Context, store *storage.Store) error,
) error {
	client, err := storage.ConnectToMongoDB(ctx, cfg.MongoURI)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to MongoDB", "error", err)
		return fmt.Errorf("connection to MongoDB failed: %w", err)
	}

	defer func() {
		if deferErr := client.Disconnect(ctx); deferErr != nil {
			logger.ErrorContext(ctx, "Error disconnecting from MongoDB", "error", deferErr)
		}
	}()

	return fn(ctx, storage.NewStore(storage.NewMongoProvider(client)))
}

// handleFlags registers the -database/-collection flags shared by the
// collection-scoped commands.
func handleFlags(fs *flag.FlagSet, cfg *config.Config) (*string, *string) {
	database := fs.String("database", cfg.Database, "Target database name")
	collection := fs.String("collection", cfg.Collection, "Target collection name")
	return database, collection
}

func runUpsert(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("upsert", flag.ExitOnError)
	database, collection := handleFlags(fs, cfg)
	keyColumn := fs.String("key", cfg.KeyColumn, "Primary key column name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	files := fs.Args()
	if len(files) == 0 {
		return errNoInputFiles
	}

	h, err := storage.NewHandle(*database, *collection)
	if err != nil {
		return err
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		total := &storage.SyncResult{}
		for _, file := range files {
			f, err := frame.FromCSV(ctx, file)
			if err != nil {
				return err
			}
			result, err := store.UpsertFrame(ctx, h, f, *keyColumn)
			if err != nil {
				return err
			}
			total.Add(result)
		}

		if len(files) > 1 {
			logger.InfoContext(ctx, fmt.Sprintf("Upsert totals for %s - %s", h, total))
		}
		return nil
	})
}

func runExport(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	database, collection := handleFlags(fs, cfg)
	out := fs.String("out", "export.csv", "Path of the CSV file to write")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	filter, err := parseFieldArgs(fs.Args())
	if err != nil {
		return err
	}

	h, err := storage.NewHandle(*database, *collection)
	if err != nil {
		return err
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		f, err := store.ReadFrame(ctx, h, filter)
		if err != nil {
			return err
		}

		if err := frame.WriteCSV(ctx, f, *out); err != nil {
			return err
		}
		logger.InfoContext(ctx, "Exported collection to CSV", "target", h.String(), "out", *out, "records", f.Len())
		return nil
	})
}

func runInsert(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	database, collection := handleFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	record, err := parseFieldArgs(fs.Args())
	if err != nil {
		return err
	}
	if len(record) == 0 {
		return fmt.Errorf("%w, none were given", errInvalidFieldArg)
	}

	h, err := storage.NewHandle(*database, *collection)
	if err != nil {
		return err
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		return store.InsertOne(ctx, h, frame.Record(record))
	})
}

func runFind(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	database, collection := handleFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	filter, err := parseFieldArgs(fs.Args())
	if err != nil {
		return err
	}

	h, err := storage.NewHandle(*database, *collection)
	if err != nil {
		return err
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		record, err := store.FindOne(ctx, h, filter)
		if err != nil {
			return err
		}
		if record == nil {
			logger.InfoContext(ctx, "No document matched", "target", h.String())
			return nil
		}
		logger.InfoContext(ctx, "Found document", "target", h.String(), "document", fmt.Sprintf("%v", record))
		return nil
	})
}

func runDelete(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	database, collection := handleFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	filter, err := parseFieldArgs(fs.Args())
	if err != nil {
		return err
	}
	if len(filter) == 0 {
		return fmt.Errorf("%w, a delete filter is required", errInvalidFieldArg)
	}

	h, err := storage.NewHandle(*database, *collection)
	if err != nil {
		return err
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		_, err := store.DeleteOne(ctx, h, filter)
		return err
	})
}

func runCount(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	database, collection := handleFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	filter, err := parseFieldArgs(fs.Args())
	if err != nil {
		return err
	}

	h, err := storage.NewHandle(*database, *collection)
	if err != nil {
		return err
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		count, err := store.Count(ctx, h, filter)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, fmt.Sprintf("%s holds %d matching documents", h, count))
		return nil
	})
}

func runClean(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	database, collection := handleFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	h, err := storage.NewHandle(*database, *collection)
	if err != nil {
		return err
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		_, err := store.CleanCollection(ctx, h)
		return err
	})
}

func runDatabases(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("databases", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		names, err := store.ListDatabases(ctx)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "Databases", "names", strings.Join(names, ", "))
		return nil
	})
}

func runCollections(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("collections", flag.ExitOnError)
	database := fs.String("database", cfg.Database, "Target database name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		names, err := store.ListCollections(ctx, *database)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "Collections", "database", *database, "names", strings.Join(names, ", "))
		return nil
	})
}

func runDropDatabase(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("drop-database", flag.ExitOnError)
	database := fs.String("database", cfg.Database, "Database to drop")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		_, err := store.DropDatabase(ctx, *database)
		return err
	})
}

func runDropCollection(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("drop-collection", flag.ExitOnError)
	database, collection := handleFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	h, err := storage.NewHandle(*database, *collection)
	if err != nil {
		return err
	}

	return withStore(ctx, logger, cfg, func(ctx context.Context, store *storage.Store) error {
		_, err := store.DropCollection(ctx, h)
		return err
	})
}

// parseFieldArgs turns trailing name=value arguments into a filter document.
// Values get the same scalar inference CSV cells do.
func parseFieldArgs(args []string) (bson.M, error) {
	if len(args) == 0 {
		return nil, nil
	}

	fields := bson.M{}
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w, got %q", errInvalidFieldArg, arg)
		}
		fields[name] = frame.InferScalar(value)
	}

	return fields, nil
}
