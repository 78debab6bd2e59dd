package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budget/internal/storage/jsonfile"
	"budget/internal/storage/memory"
	"budget/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case JSONBackend:
		return f.createJSONBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createJSONBackend(config Config) (*BackendResult, error) {
	store, err := jsonfile.New(config.DataFile, jsonfile.WithLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JSON store: %w", err)
	}

	f.logger.Info("Initialized JSON file backend", "data_file", config.DataFile)

	return &BackendResult{
		Store: store,
		Ready: func(context.Context) error {
			dir := filepath.Dir(config.DataFile)
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("data directory unavailable: %w", err)
			}
			return nil
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := sqlite.Open(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
		Ready:   store.Ping,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Store: store}, nil
}
