// Package fetcher reads the dashboard's tabular and vector input files.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
	// Columns selects fields by header name (case-insensitive). When set,
	// the first row is treated as the header and each emitted row holds
	// exactly these fields, in this order.
	Columns []string
}

// StreamCSV reads CSV rows and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields
		reader.ReuseRecord = false

		var index []int
		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				if first && len(opts.Columns) > 0 {
					errCh <- eris.New("csv: missing header row")
				}
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && len(opts.Columns) > 0 {
				first = false
				index, err = columnIndex(record, opts.Columns)
				if err != nil {
					errCh <- err
					return
				}
				continue
			}
			first = false

			if index != nil {
				record, err = project(record, index)
				if err != nil {
					errCh <- eris.Wrapf(err, "csv: line %d", lineOf(reader))
					return
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func columnIndex(header, columns []string) ([]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		// Strip a UTF-8 BOM left by spreadsheet exports.
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		byName[strings.ToLower(h)] = i
	}

	index := make([]int, len(columns))
	for i, col := range columns {
		idx, ok := byName[strings.ToLower(col)]
		if !ok {
			return nil, eris.Errorf("csv: column %q not found in header", col)
		}
		index[i] = idx
	}
	return index, nil
}

func project(record []string, index []int) ([]string, error) {
	out := make([]string, len(index))
	for i, idx := range index {
		if idx >= len(record) {
			return nil, eris.Errorf("csv: row has %d fields, need field %d", len(record), idx+1)
		}
		out[i] = record[idx]
	}
	return out, nil
}

func lineOf(r *csv.Reader) int {
	line, _ := r.FieldPos(0)
	return line
}
