package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// TasksFile is the repository path of the task metadata.
const TasksFile = "meta/tasks.parquet"

// CacheRoot is where the toolkit stores recorded datasets.
func CacheRoot() string {
	if dir := os.Getenv("HF_LEROBOT_HOME"); dir != "" {
		return dir
	}
	if dir := os.Getenv("HF_HOME"); dir != "" {
		return filepath.Join(dir, "lerobot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cache", "huggingface", "lerobot")
	}
	return filepath.Join(home, ".cache", "huggingface", "lerobot")
}

// LocalDatasets lists the dataset names recorded under namespace, sorted. A
// missing namespace directory yields no datasets.
func LocalDatasets(root, namespace string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, namespace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Source lists and downloads dataset repository files.
type Source interface {
	ListFiles(ctx context.Context, repoID string) ([]string, error)
	Download(ctx context.Context, repoID, path, dest string) error
}

// Local is a dataset copied to disk.
type Local struct {
	RepoID    string
	Dir       string
	DataFiles []string // repository paths, sorted
	HasTasks  bool
}

// Path returns the local path of a repository file.
func (l *Local) Path(repoPath string) string {
	return filepath.Join(l.Dir, filepath.FromSlash(repoPath))
}

// IsDataFile reports whether a repository path holds episode rows.
func IsDataFile(p string) bool {
	return strings.HasPrefix(p, "data/") && path.Ext(p) == ".parquet"
}

// Materialize downloads the data files and task metadata of repoID into dir.
func Materialize(ctx context.Context, src Source, repoID, dir string) (*Local, error) {
	files, err := src.ListFiles(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", repoID, err)
	}

	l := &Local{RepoID: repoID, Dir: dir}
	for _, f := range files {
		switch {
		case f == TasksFile:
			l.HasTasks = true
		case IsDataFile(f):
			l.DataFiles = append(l.DataFiles, f)
		default:
			continue
		}
		if err := src.Download(ctx, repoID, f, l.Path(f)); err != nil {
			return nil, fmt.Errorf("download %s: %w", f, err)
		}
	}
	if len(l.DataFiles) == 0 {
		return nil, fmt.Errorf("%s has no data files", repoID)
	}
	sort.Strings(l.DataFiles)
	return l, nil
}

// TaskMapping reads the downloaded task metadata.
func (l *Local) TaskMapping() (map[int64]string, error) {
	if !l.HasTasks {
		return nil, fmt.Errorf("%s not found in %s", TasksFile, l.RepoID)
	}
	return readFile(l.Path(TasksFile), ReadTaskMapping)
}

// ReadDataFile reads the rows of a downloaded data file.
func (l *Local) ReadDataFile(repoPath string) (Batch, error) {
	return readFile(l.Path(repoPath), ReadBatch)
}

func readFile[T any](name string, read func(io.ReaderAt, int64) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(name)
	if err != nil {
		return zero, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return zero, err
	}
	v, err := read(f, st.Size())
	if err != nil {
		return zero, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return v, nil
}

// WriteFile writes b to name, creating parent directories.
func WriteFile(name string, b Batch) error {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return err
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := WriteBatch(f, b); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(name), err)
	}
	return f.Close()
}
