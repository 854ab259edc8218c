// Package augment multiplies dataset rows by paraphrases of their task
// description.
package augment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/lehungry-robotum/commander/pkg/dataset"
)

// DefaultTextColumn receives the task text of each output row.
const DefaultTextColumn = "single_task"

// ErrUnknownTask is returned in strict mode for a row whose task index has no
// cache entry.
var ErrUnknownTask = errors.New("task index not in augmentation cache")

// Mapping is task index -> canonical task description.
type Mapping map[int64]string

// Cache is task index -> original description followed by accepted variants.
type Cache map[int64][]string

// SortedIDs returns the task indexes of m in ascending order.
func SortedIDs(m Mapping) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Fallback decides what happens to rows whose task index is not cached.
type Fallback int

const (
	// Placeholder emits a single row with text "Task <idx>".
	Placeholder Fallback = iota
	// Strict fails the batch with ErrUnknownTask.
	Strict
)

// Options configure generation and batch expansion.
type Options struct {
	TextColumn  string
	Fallback    Fallback
	Variants    int // paraphrases requested per task
	Concurrency int // parallel requests in Precompute
	Logger      *log.Logger
}

func (o Options) textColumn() string {
	if o.TextColumn == "" {
		return DefaultTextColumn
	}
	return o.TextColumn
}

// PlaceholderText is the text used for a task index missing from the cache.
func PlaceholderText(idx int64) string {
	return fmt.Sprintf("Task %d", idx)
}

// Report describes one batch expansion.
type Report struct {
	InputRows    int
	OutputRows   int
	MissingTasks []int64 // sorted, without duplicates
}

// Merge adds the counts of other to r.
func (r *Report) Merge(other Report) {
	r.InputRows += other.InputRows
	r.OutputRows += other.OutputRows
	for _, idx := range other.MissingTasks {
		r.MissingTasks = addMissing(r.MissingTasks, idx)
	}
}

func addMissing(missing []int64, idx int64) []int64 {
	i := sort.Search(len(missing), func(i int) bool { return missing[i] >= idx })
	if i < len(missing) && missing[i] == idx {
		return missing
	}
	missing = append(missing, 0)
	copy(missing[i+1:], missing[i:])
	missing[i] = idx
	return missing
}

// AugmentBatch emits, for every input row in order, one row per cached text of
// its task. All other columns are copied from the input row; the text column
// is added, or overwritten when the batch already has it.
func AugmentBatch(batch dataset.Batch, cache Cache, opts Options) (dataset.Batch, Report, error) {
	text := opts.textColumn()

	columns := append([]string(nil), batch.Columns...)
	if !batch.Has(text) {
		columns = append(columns, text)
	}
	out := batch.Like(columns...)
	report := Report{InputRows: batch.Len()}

	for i := range batch.Len() {
		idx, err := batch.TaskIndex(i)
		if err != nil {
			return dataset.Batch{}, report, err
		}

		texts, ok := cache[idx]
		if !ok {
			if opts.Fallback == Strict {
				return dataset.Batch{}, report, fmt.Errorf("row %d: %w: %d", i, ErrUnknownTask, idx)
			}
			texts = []string{PlaceholderText(idx)}
			report.MissingTasks = addMissing(report.MissingTasks, idx)
		}

		for _, s := range texts {
			for _, col := range batch.Columns {
				if col != text {
					out.Append(col, batch.Data[col][i])
				}
			}
			out.Append(text, s)
		}
	}

	report.OutputRows = out.Len()
	if len(report.MissingTasks) > 0 && opts.Logger != nil {
		opts.Logger.Warn("task indexes missing from cache, using placeholder text", "tasks", report.MissingTasks)
	}
	return out, report, nil
}
