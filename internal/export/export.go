// Package export converts tables into downloadable formats: a workbook
// with one sheet per table, or one canonical CSV file per table.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/mesh-intelligence/planner/internal/tablestore"
	"github.com/mesh-intelligence/planner/pkg/types"
)

// Sheet is a named table to export.
type Sheet struct {
	Name  string
	Table *types.Table
}

// ErrNoSheets is returned when there is nothing to export.
var ErrNoSheets = errors.New("no tables to export")

// Workbook writes an xlsx workbook with one sheet per table, in order. The
// first row of each sheet holds the field names; numbers and booleans are
// written as typed cells.
func Workbook(w io.Writer, sheets []Sheet) error {
	if len(sheets) == 0 {
		return ErrNoSheets
	}
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, s.Name); err != nil {
				return fmt.Errorf("naming sheet %q: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("adding sheet %q: %w", s.Name, err)
		}
		if err := writeSheet(f, s, header); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s Sheet, headerStyle int) error {
	schema := s.Table.Schema()
	names := schema.FieldNames()

	for col, name := range names {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(s.Name, cell, name); err != nil {
			return fmt.Errorf("sheet %q: %w", s.Name, err)
		}
	}
	if len(names) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(names), 1)
		if err := f.SetCellStyle(s.Name, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("sheet %q: styling header: %w", s.Name, err)
		}
	}

	for row, rec := range s.Table.Records() {
		for col, name := range names {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(s.Name, cell, rec[name]); err != nil {
				return fmt.Errorf("sheet %q row %d: %w", s.Name, row+2, err)
			}
		}
	}
	return nil
}

// CSV writes "<name>.csv" into dir for each sheet, in canonical form, and
// returns the paths written.
func CSV(dir string, sheets []Sheet) ([]string, error) {
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	paths := make([]string, 0, len(sheets))
	for _, s := range sheets {
		data, err := tablestore.Serialize(s.Table)
		if err != nil {
			return paths, fmt.Errorf("serializing %s: %w", s.Name, err)
		}
		path := filepath.Join(dir, s.Name+".csv")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
