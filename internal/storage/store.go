// Package storage persists finished runs: a metadata document plus one
// CSV series per selected variable.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/marlin/internal/grid"
	"github.com/san-kum/marlin/internal/state"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0o755)
}

// RunMetadata describes one persisted run.
type RunMetadata struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"`
	Variables []string      `json:"variables"`
	Stages    []string      `json:"stages"`
}

// Save writes a run directory containing metadata.json and a CSV per
// requested variable, returning the run ID.
func (s *Store) Save(name string, stages []string, st *state.State, variables []string, elapsed time.Duration) (string, error) {
	runID := fmt.Sprintf("%s_%d", name, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	saved := make([]string, 0, len(variables))
	for _, v := range variables {
		a, err := st.Get(v)
		if err != nil {
			return "", err
		}
		if err := writeCSV(filepath.Join(runDir, v+".csv"), a); err != nil {
			return "", err
		}
		saved = append(saved, v)
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      name,
		Timestamp: time.Now(),
		Elapsed:   elapsed,
		Variables: saved,
		Stages:    stages,
	}
	f, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return runID, nil
}

// writeCSV flattens an array into rows of coordinate values plus the
// element value.
func writeCSV(path string, a *grid.Array) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append(a.Dims(), "value")
	if err := w.Write(header); err != nil {
		return err
	}

	shape := a.Shape()
	idx := make([]int, len(shape))
	row := make([]string, len(shape)+1)
	for flat := 0; flat < a.Size(); flat++ {
		for i := range idx {
			row[i] = strconv.FormatFloat(a.Coords[i].Values[idx[i]], 'g', -1, 64)
		}
		row[len(shape)] = strconv.FormatFloat(a.Data[a.Flat(idx...)], 'g', -1, 64)
		if err := w.Write(row); err != nil {
			return err
		}
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return w.Error()
}

// List returns the metadata of every persisted run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var runs []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

// Load reads one run's metadata.
func (s *Store) Load(runID string) (RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return RunMetadata{}, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return RunMetadata{}, err
	}
	return meta, nil
}
