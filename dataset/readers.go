package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/warp/inclusion-dashboard/store/sqlite"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// XLSX - first sheet, raw cell values
// =============================================================================

// readXLSX reads the first sheet. Raw cell values are requested so date cells
// arrive as Excel serials rather than locale-formatted strings.
func readXLSX(path string) (table, error) {
	t := table{source: path}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return t, ErrEmptyTable
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return t, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return t, ErrEmptyTable
	}
	t.header, t.rows = rows[0], rows[1:]
	return t, nil
}

// =============================================================================
// CSV
// =============================================================================

func readCSVFile(path string) (table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table{source: path}, err
	}
	defer f.Close()
	return readCSV(path, f)
}

// readCSV reads a header row then data rows. Malformed rows are skipped.
func readCSV(source string, r io.Reader) (table, error) {
	t := table{source: source}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return t, ErrEmptyTable
	}
	if err != nil {
		return t, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	t.header = header

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return t, err
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// =============================================================================
// SQLITE
// =============================================================================

func readSQLite(ctx context.Context, path, name string) (table, error) {
	t := table{source: path + "#" + name}

	store, err := sqlite.Open(path)
	if err != nil {
		return t, err
	}
	defer store.Close()

	header, rows, err := store.ReadTable(ctx, name)
	if err != nil {
		return t, err
	}
	t.header, t.rows = header, rows
	return t, nil
}
