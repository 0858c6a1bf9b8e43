// Package formatter renders result rows as CSV text.
//
// The first row defines the schema: its columns, in arrival order, make the header.
// Later rows are written in that column order; a missing column is written as an
// empty field and columns unknown to the first row are dropped. Records end with LF
// and the output ends with exactly one newline.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyResultSet = errors.New("empty result set")
	// ErrNoColumns is returned when the first row, which defines the header, is empty.
	ErrNoColumns = errors.New("first row has no columns")
)

func Format(rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmptyResultSet
	}

	header := rows[0].Columns()
	if len(header) == 0 {
		return "", ErrNoColumns
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(header))
	for i, row := range rows {
		for j, column := range header {
			value, ok := row.Get(column)
			if !ok {
				record[j] = ""
				continue
			}
			field, err := formatValue(value)
			if err != nil {
				return "", fmt.Errorf("row %d column %q: %w", i, column, err)
			}
			record[j] = field
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatValue renders a scalar without locale: integers as their digits, floats in
// the shortest form that parses back to the same value, null as an empty field.
// Nested arrays and objects are written as compact JSON.
func formatValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return formatNumber(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return formatFloat(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func formatNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		// integer literal, kept verbatim whatever its width
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	out, err := formatFloat(f)
	if err != nil {
		return s
	}
	return out
}

func formatFloat(f float64) (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
