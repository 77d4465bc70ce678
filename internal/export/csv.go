package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ambientwx/ambientwx/internal/weather"
)

// WriteCSV writes the table as CSV: one header row, then one row per
// observation. Missing cells are written empty.
func WriteCSV(w io.Writer, table *Table) error {
	cw := csv.NewWriter(w)

	if table.NumColumns() > 0 {
		if err := cw.Write(table.Columns); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	record := make([]string, table.NumColumns())
	for i, row := range table.Rows {
		for j, cell := range row {
			s, err := formatCell(cell)
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i, table.Columns[j], err)
			}
			record[j] = s
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes observations to a CSV file at path, replacing any existing file.
func WriteCSVFile(path string, observations []*weather.Observation) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	if err := WriteCSV(f, ToTable(observations)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadCSV reads a CSV written by WriteCSV. Cells are returned as strings;
// empty cells become nil.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{Columns: []string{}, Rows: [][]any{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	table := &Table{Columns: header, Rows: [][]any{}}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", table.NumRows(), err)
		}

		row := make([]any, len(record))
		for j, cell := range record {
			if cell != "" {
				row[j] = cell
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func formatCell(cell any) (string, error) {
	switch v := cell.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.UTC().Format(weather.DateLayout), nil
	case json.Number:
		return v.String(), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
