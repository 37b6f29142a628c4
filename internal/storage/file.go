package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/IshaanNene/ProductGoat/internal/types"
)

// row is one record as a JSON object whose keys keep column order.
type row struct {
	columns []string
	values  []string
}

func (r row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func rows(batch *types.Batch, includeURL bool) []row {
	cols := batch.Columns(includeURL)
	out := make([]row, batch.Len())
	for i, rec := range batch.Records() {
		out[i] = row{columns: cols, values: rec.Row(includeURL)}
	}
	return out
}

// --- JSON Storage ---

// JSONStorage writes records as a JSON array of objects to a file.
type JSONStorage struct {
	path       string
	includeURL bool
	header     header
	rows       []row
	mu         sync.Mutex
	logger     *slog.Logger
}

// NewJSONStorage creates a new JSON file storage. The file is written on
// Close.
func NewJSONStorage(outputPath string, includeURL bool, logger *slog.Logger) (*JSONStorage, error) {
	if outputPath == "" {
		return nil, &types.StorageError{Backend: "json", Err: fmt.Errorf("output path is required")}
	}
	return &JSONStorage{
		path:       outputPath,
		includeURL: includeURL,
		rows:       make([]row, 0),
		logger:     logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

func (s *JSONStorage) Store(batch *types.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.header.check(batch, s.includeURL); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	s.rows = append(s.rows, rows(batch, s.includeURL)...)
	s.logger.Debug("records buffered", "count", batch.Len(), "total", len(s.rows))
	return nil
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := createFile(s.path)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.rows); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSON: %w", err)}
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(s.rows))
	return nil
}

// --- JSONL Storage ---

// JSONLStorage writes records as newline-delimited JSON (one object per line).
type JSONLStorage struct {
	path       string
	includeURL bool
	header     header
	file       *os.File
	enc        *json.Encoder
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage (streaming writes).
func NewJSONLStorage(outputPath string, includeURL bool, logger *slog.Logger) (*JSONLStorage, error) {
	f, err := createFile(outputPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: err}
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &JSONLStorage{
		path:       outputPath,
		includeURL: includeURL,
		file:       f,
		enc:        enc,
		logger:     logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(batch *types.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.header.check(batch, s.includeURL); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	for _, r := range rows(batch, s.includeURL) {
		if err := s.enc.Encode(r); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.logger.Info("JSONL written", "path", s.path, "records", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// --- CSV Storage ---

// CSVStorage writes records as CSV rows under a header equal to the field
// order.
type CSVStorage struct {
	path       string
	includeURL bool
	header     header
	file       *os.File
	writer     *csv.Writer
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewCSVStorage creates a new CSV file storage.
func NewCSVStorage(outputPath string, includeURL bool, logger *slog.Logger) (*CSVStorage, error) {
	f, err := createFile(outputPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: err}
	}

	return &CSVStorage{
		path:       outputPath,
		includeURL: includeURL,
		file:       f,
		writer:     csv.NewWriter(f),
		logger:     logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

func (s *CSVStorage) Store(batch *types.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, err := s.header.check(batch, s.includeURL)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	if first {
		if err := s.writer.Write(s.header.columns); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write CSV header: %w", err)}
		}
	}

	for _, rec := range batch.Records() {
		if err := s.writer.Write(rec.Row(s.includeURL)); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write CSV row: %w", err)}
		}
		s.count++
	}

	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVStorage) Close() error {
	s.logger.Info("CSV written", "path", s.path, "records", s.count)
	if s.writer != nil {
		s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
