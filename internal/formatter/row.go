package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/pb33f/ordered-map/v2"
)

// Row is one result record. Columns keep the order in which they arrived.
type Row struct {
	fields *orderedmap.OrderedMap[string, any]
}

type Field struct {
	Name  string
	Value any
}

// NewRow builds a row from fields in order. A repeated name keeps its first
// position and its last value, as JSON decoding does.
func NewRow(fields ...Field) Row {
	r := Row{fields: orderedmap.New[string, any]()}
	for _, f := range fields {
		r.fields.Set(f.Name, f.Value)
	}
	return r
}

func (r Row) Columns() []string {
	if r.fields == nil {
		return nil
	}
	out := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (r Row) Get(column string) (any, bool) {
	if r.fields == nil {
		return nil, false
	}
	return r.fields.Get(column)
}

func (r Row) Len() int {
	if r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// UnmarshalJSON decodes a JSON object keeping its key order. Numbers are kept as
// json.Number so that no precision is lost before formatting.
func (r *Row) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return errors.New("result row is not a JSON object")
	}

	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decoding result row: %w", err)
	}

	fields := orderedmap.New[string, any]()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		dec := json.NewDecoder(bytes.NewReader(pair.Value))
		dec.UseNumber()

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding column %q: %w", pair.Key, err)
		}
		fields.Set(pair.Key, value)
	}

	r.fields = fields
	return nil
}
