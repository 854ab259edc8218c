// Package dataset reads and writes the columnar episode data of recorded
// datasets and locates them in the local cache or on the hub.
package dataset

import (
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// TaskIndexColumn holds the task index of each frame.
const TaskIndexColumn = "task_index"

// Cell is the raw content of one column in one row as read from a parquet
// file: the values of every leaf column of the field, levels included.
type Cell []parquet.Value

// Batch is a set of rows stored by column. Every column has the same length.
type Batch struct {
	Columns []string
	Data    map[string][]any

	// fields of the file the batch was read from, by top-level name
	fields map[string]parquet.Node
}

// NewBatch returns an empty batch with the given columns.
func NewBatch(columns ...string) Batch {
	b := Batch{Columns: append([]string(nil), columns...), Data: make(map[string][]any, len(columns))}
	for _, c := range columns {
		b.Data[c] = nil
	}
	return b
}

// Like returns an empty batch with columns, keeping the parquet schema of b so
// that copied cells are written back with their original types.
func (b Batch) Like(columns ...string) Batch {
	out := NewBatch(columns...)
	out.fields = b.fields
	return out
}

// Len is the number of rows.
func (b Batch) Len() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return len(b.Data[b.Columns[0]])
}

// Has reports whether the batch has the named column.
func (b Batch) Has(name string) bool {
	_, ok := b.Data[name]
	return ok
}

// Column returns the cells of the named column.
func (b Batch) Column(name string) []any {
	return b.Data[name]
}

// Append adds a cell to the named column.
func (b *Batch) Append(name string, v any) {
	b.Data[name] = append(b.Data[name], v)
}

// TaskIndex returns the task index of row.
func (b Batch) TaskIndex(row int) (int64, error) {
	col, ok := b.Data[TaskIndexColumn]
	if !ok {
		return 0, fmt.Errorf("batch has no %s column", TaskIndexColumn)
	}
	if row < 0 || row >= len(col) {
		return 0, fmt.Errorf("row %d out of range", row)
	}
	return toInt64(col[row])
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case Cell:
		if len(v) != 1 || v[0].IsNull() {
			return 0, fmt.Errorf("task index is not a single value")
		}
		switch v[0].Kind() {
		case parquet.Int32:
			return int64(v[0].Int32()), nil
		case parquet.Int64:
			return v[0].Int64(), nil
		}
		return 0, fmt.Errorf("task index has kind %s", v[0].Kind())
	}
	return 0, fmt.Errorf("task index has type %T", v)
}
