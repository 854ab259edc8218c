package dataset

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

const readBufferRows = 256

// ReadBatch reads all rows of a parquet file. Each cell is a Cell holding the
// raw leaf values, so rows copied into another batch are written back
// unchanged.
func ReadBatch(r io.ReaderAt, size int64) (Batch, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return Batch{}, fmt.Errorf("open parquet: %w", err)
	}
	schema := f.Schema()

	fields := schema.Fields()
	names := make([]string, len(fields))
	b := Batch{Data: make(map[string][]any, len(fields)), fields: make(map[string]parquet.Node, len(fields))}

	// leaf column index -> top-level field index
	var owner []int
	for i, field := range fields {
		names[i] = field.Name()
		b.fields[field.Name()] = field
		b.Data[field.Name()] = make([]any, 0, f.NumRows())
		for range countLeaves(field) {
			owner = append(owner, i)
		}
	}
	b.Columns = names

	buf := make([]parquet.Row, readBufferRows)
	for _, rg := range f.RowGroups() {
		if err := readRowGroup(rg, buf, func(row parquet.Row) error {
			cells := make([]Cell, len(fields))
			for _, v := range row.Clone() {
				col := v.Column()
				if col < 0 || col >= len(owner) {
					return fmt.Errorf("value for unknown column %d", col)
				}
				cells[owner[col]] = append(cells[owner[col]], v)
			}
			for i, name := range names {
				b.Data[name] = append(b.Data[name], cells[i])
			}
			return nil
		}); err != nil {
			return Batch{}, err
		}
	}
	return b, nil
}

func readRowGroup(rg parquet.RowGroup, buf []parquet.Row, fn func(parquet.Row) error) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			if err := fn(row); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read rows: %w", err)
		}
	}
}

func countLeaves(n parquet.Node) int {
	if n.Leaf() {
		return 1
	}
	total := 0
	for _, f := range n.Fields() {
		total += countLeaves(f)
	}
	return total
}

// WriteBatch writes b as a parquet file. Columns whose cells are Cells keep the
// type they were read with; any other column is written as a required string
// column holding the cell's text.
func WriteBatch(w io.Writer, b Batch) error {
	group := parquet.Group{}
	for _, name := range b.Columns {
		if node, ok := b.fields[name]; ok && isRaw(b.Data[name]) {
			group[name] = node
		} else {
			group[name] = parquet.String()
		}
	}
	schema := parquet.NewSchema("dataset", group)

	// top-level fields are reordered by name; remember where each one starts
	type layout struct {
		name  string
		start int
	}
	var fields []layout
	next := 0
	for _, f := range schema.Fields() {
		fields = append(fields, layout{name: f.Name(), start: next})
		next += countLeaves(f)
	}

	pw := parquet.NewWriter(w, schema)
	rows := make([]parquet.Row, 0, readBufferRows)
	flush := func() error {
		if _, err := pw.WriteRows(rows); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		rows = rows[:0]
		return nil
	}

	for i := range b.Len() {
		row := make(parquet.Row, 0, next)
		for _, f := range fields {
			cell := b.Data[f.name][i]
			if c, ok := cell.(Cell); ok {
				base := firstColumn(c)
				for _, v := range c {
					row = append(row, v.Level(v.RepetitionLevel(), v.DefinitionLevel(), f.start+v.Column()-base))
				}
				continue
			}
			row = append(row, parquet.ValueOf(text(cell)).Level(0, 0, f.start))
		}
		rows = append(rows, row)
		if len(rows) == cap(rows) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return pw.Close()
}

func isRaw(cells []any) bool {
	for _, c := range cells {
		if _, ok := c.(Cell); !ok {
			return false
		}
	}
	return true
}

func firstColumn(c Cell) int {
	lowest := -1
	for _, v := range c {
		if col := v.Column(); lowest < 0 || col < lowest {
			lowest = col
		}
	}
	return lowest
}

func text(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// ReadTaskMapping reads a tasks metadata file into task index -> description.
// The description comes from the "task" column, or the first string column
// when there is none.
func ReadTaskMapping(r io.ReaderAt, size int64) (map[int64]string, error) {
	b, err := ReadBatch(r, size)
	if err != nil {
		return nil, err
	}
	if !b.Has(TaskIndexColumn) {
		return nil, fmt.Errorf("tasks file has no %s column", TaskIndexColumn)
	}

	taskCol := ""
	if node, ok := b.fields["task"]; ok && isString(node) {
		taskCol = "task"
	} else {
		for _, name := range b.Columns {
			if name != TaskIndexColumn && isString(b.fields[name]) {
				taskCol = name
				break
			}
		}
	}
	if taskCol == "" {
		return nil, errors.New("tasks file has no string column")
	}

	mapping := make(map[int64]string, b.Len())
	for i := range b.Len() {
		idx, err := b.TaskIndex(i)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		c, _ := b.Data[taskCol][i].(Cell)
		if len(c) != 1 || c[0].IsNull() {
			continue
		}
		mapping[idx] = string(c[0].ByteArray())
	}
	return mapping, nil
}

func isString(n parquet.Node) bool {
	return n != nil && n.Leaf() && !n.Repeated() && n.Type().Kind() == parquet.ByteArray
}
