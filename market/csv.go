package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// LoadBarsCSV reads bars from a CSV file with the columns
// time,symbol,open,high,low,close,volume. Lines whose first field is
// "time" are treated as a header and skipped. Bars are grouped by
// symbol.
func LoadBarsCSV(path string) (map[string][]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	return ReadBarsCSV(f)
}

// ReadBarsCSV parses bar rows from r. See LoadBarsCSV for the format.
func ReadBarsCSV(r io.Reader) (map[string][]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 7
	cr.TrimLeadingSpace = true

	out := make(map[string][]Bar)
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bars csv: %w", err)
		}
		line++

		if rec[0] == "time" {
			continue
		}

		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("bars csv line %d: bad time %q: %w", line, rec[0], err)
		}

		vals := make([]float64, 5)
		for i, field := range rec[2:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("bars csv line %d: bad number %q: %w", line, field, err)
			}
			vals[i] = v
		}

		symbol := rec[1]
		out[symbol] = append(out[symbol], Bar{
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return out, nil
}
