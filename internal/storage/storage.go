// Package storage exports record batches with a fixed column order.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

// Storage is the interface for all export backends.
type Storage interface {
	// Store writes a batch. Absent fields are written as empty strings.
	Store(batch *types.Batch) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Types lists the supported storage types.
var Types = []string{"csv", "json", "jsonl", "xlsx"}

// New creates the backend selected by cfg.Type writing to cfg.OutputPath.
func New(cfg config.StorageConfig, logger *slog.Logger) (Storage, error) {
	return NewFileStorage(cfg.Type, cfg.OutputPath, cfg.IncludeURL, logger)
}

// NewFileStorage creates the appropriate file-based storage by type.
func NewFileStorage(storageType, outputPath string, includeURL bool, logger *slog.Logger) (Storage, error) {
	switch strings.ToLower(storageType) {
	case "json":
		return NewJSONStorage(outputPath, includeURL, logger)
	case "jsonl":
		return NewJSONLStorage(outputPath, includeURL, logger)
	case "csv":
		return NewCSVStorage(outputPath, includeURL, logger)
	case "xlsx", "excel":
		return NewExcelStorage(outputPath, includeURL, logger)
	default:
		return nil, &types.StorageError{Backend: storageType, Err: types.ErrUnsupportedFormat}
	}
}

// TypeFromPath guesses a storage type from a file extension.
func TypeFromPath(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv", true
	case ".json":
		return "json", true
	case ".jsonl", ".ndjson":
		return "jsonl", true
	case ".xlsx":
		return "xlsx", true
	}
	return "", false
}

// header tracks the column layout of the first stored batch so later
// batches cannot change the shape of the output.
type header struct {
	columns []string
}

func (h *header) check(batch *types.Batch, includeURL bool) (first bool, err error) {
	cols := batch.Columns(includeURL)
	if h.columns == nil {
		h.columns = cols
		return true, nil
	}
	if strings.Join(cols, "\x00") != strings.Join(h.columns, "\x00") {
		return false, fmt.Errorf("batch columns %v do not match output columns %v", cols, h.columns)
	}
	return false, nil
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}
