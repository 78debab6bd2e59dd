// Package jsonfile persists a ledger snapshot as a single pretty-printed JSON
// document on the local filesystem.
package jsonfile

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"budget/internal/core"
)

//go:embed schema.json
var schemaJSON []byte

const (
	indent   = "    "
	fileMode = 0o644
)

type Store struct {
	path   string
	logger *slog.Logger
	schema *jsonschema.Schema

	mu sync.Mutex
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a store backed by the file at path. The file is created on the
// first Save.
func New(path string, opts ...Option) (*Store, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, logger: slog.Default(), schema: schema}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Load reads and decodes the backing file. A missing file yields
// core.ErrSnapshotNotFound; undecodable content or a top-level value other
// than an object yields core.ErrSnapshotCorrupt.
// Documents that decode but do not match the schema are loaded anyway and
// the violation is logged.
func (s *Store) Load(ctx context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Snapshot{}, core.ErrSnapshotNotFound
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	if err := s.validate(b); err != nil {
		s.logger.WarnContext(ctx, "Ledger file does not match schema",
			"path", s.path,
			"error", err)
	}

	if !bytes.HasPrefix(bytes.TrimSpace(b), []byte("{")) {
		return core.Snapshot{}, fmt.Errorf("%w: %s: top-level value is not an object", core.ErrSnapshotCorrupt, s.path)
	}
	var snap core.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %s: %v", core.ErrSnapshotCorrupt, s.path, err)
	}
	return snap, nil
}

// Save writes the snapshot to a temporary file next to the target and
// renames it into place.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) error {
	if snap.Expenses == nil {
		snap.Expenses = []core.Expense{}
	}
	if snap.Categories == nil {
		snap.Categories = []string{}
	}
	b, err := json.MarshalIndent(snap, "", indent)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.logger.DebugContext(ctx, "Ledger written",
		"path", s.path,
		"records", len(snap.Expenses),
		"bytes", len(b))
	return nil
}

func (s *Store) validate(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.schema.Validate(v)
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("ledger.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("ledger.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
