package query

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is an ordered column to value mapping. It encodes to a JSON object
// whose keys follow column order.
type Row struct {
	columns []string
	values  []any
}

func NewRow(columns []string, values []any) Row {
	row := Row{
		columns: make([]string, 0, len(columns)),
		values:  make([]any, 0, len(columns)),
	}
	for i, column := range columns {
		var value any
		if i < len(values) {
			value = values[i]
		}
		row.Set(column, value)
	}
	return row
}

// Set assigns value to column. A repeated column keeps its first position
// and takes the new value.
func (r *Row) Set(column string, value any) {
	for i, existing := range r.columns {
		if existing == column {
			r.values[i] = value
			return
		}
	}
	r.columns = append(r.columns, column)
	r.values = append(r.values, value)
}

func (r Row) Get(column string) (any, bool) {
	for i, existing := range r.columns {
		if existing == column {
			return r.values[i], true
		}
	}
	return nil, false
}

func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", column, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("marshal value of column %q: %w", column, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order of the input.
func (r *Row) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	row, err := DecodeRow(decoder)
	if err != nil {
		return err
	}
	*r = row
	return nil
}

// DecodeRow reads one JSON object from decoder.
func DecodeRow(decoder *json.Decoder) (Row, error) {
	token, err := decoder.Token()
	if err != nil {
		return Row{}, fmt.Errorf("read row start: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return Row{}, fmt.Errorf("row must be a JSON object, got %v", token)
	}
	var row Row
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return Row{}, fmt.Errorf("read row key: %w", err)
		}
		key, ok := keyToken.(string)
		if !ok {
			return Row{}, fmt.Errorf("row key must be a string, got %v", keyToken)
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return Row{}, fmt.Errorf("decode value of column %q: %w", key, err)
		}
		row.Set(key, value)
	}
	if _, err := decoder.Token(); err != nil {
		return Row{}, fmt.Errorf("read row end: %w", err)
	}
	return row, nil
}

// NormalizeValue converts driver byte slices to strings so rows encode as
// readable JSON.
func NormalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}
