package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/IshaanNene/ProductGoat/internal/types"
)

const (
	excelSheet         = "Products"
	excelMaxCellLength = 32767
)

// ExcelStorage writes records to a single-sheet workbook with a bold,
// frozen header row. The workbook is saved on Close.
type ExcelStorage struct {
	path       string
	includeURL bool
	header     header
	file       *excelize.File
	row        int
	mu         sync.Mutex
	logger     *slog.Logger
}

// NewExcelStorage creates a new XLSX storage.
func NewExcelStorage(outputPath string, includeURL bool, logger *slog.Logger) (*ExcelStorage, error) {
	if outputPath == "" {
		return nil, &types.StorageError{Backend: "xlsx", Err: fmt.Errorf("output path is required")}
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), excelSheet); err != nil {
		f.Close()
		return nil, &types.StorageError{Backend: "xlsx", Err: err}
	}

	return &ExcelStorage{
		path:       outputPath,
		includeURL: includeURL,
		file:       f,
		row:        1,
		logger:     logger.With("component", "excel_storage"),
	}, nil
}

func (s *ExcelStorage) Name() string { return "xlsx" }

func (s *ExcelStorage) Store(batch *types.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, err := s.header.check(batch, s.includeURL)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	if first {
		if err := s.writeHeader(); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: err}
		}
	}

	for _, rec := range batch.Records() {
		if err := s.writeRow(rec.Row(s.includeURL)); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: err}
		}
	}
	return nil
}

func (s *ExcelStorage) writeHeader() error {
	if err := s.writeRow(s.header.columns); err != nil {
		return err
	}

	style, err := s.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(s.header.columns), 1)
	if err != nil {
		return err
	}
	if err := s.file.SetCellStyle(excelSheet, "A1", last, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	return s.file.SetPanes(excelSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (s *ExcelStorage) writeRow(values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		if len(v) > excelMaxCellLength {
			v = v[:excelMaxCellLength]
		}
		cells[i] = v
	}
	if err := s.file.SetSheetRow(excelSheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", s.row, err)
	}
	s.row++
	return nil
}

func (s *ExcelStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.file.Close()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create output dir: %w", err)}
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	s.logger.Info("XLSX written", "path", s.path, "records", max(s.row-2, 0))
	return nil
}
