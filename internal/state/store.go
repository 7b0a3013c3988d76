package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/moby/sys/atomicwriter"
	"sigs.k8s.io/yaml"

	"github.com/imamik/podkeeper/internal/pod"
)

// DefaultPath is the state file used when none is configured.
const DefaultPath = ".podkeeper/state.json"

// Store persists State to a single file. The encoding follows the file
// extension: .yaml and .yml are YAML, anything else is indented JSON.
//
// Writes are atomic (temp file and rename). Update serializes
// load-modify-save cycles within one process; separate processes sharing a
// file are last-save-wins.
type Store struct {
	path string
	yaml bool
	mu   sync.Mutex
}

// NewStore returns a store for path. An empty path means DefaultPath.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	ext := strings.ToLower(filepath.Ext(path))
	return &Store{
		path: path,
		yaml: ext == ".yaml" || ext == ".yml",
	}
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields an empty state. A file
// that cannot be read or parsed is an error, never an empty state.
func (s *Store) Load() (*State, error) {
	// #nosec G304
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Path: s.path, Kind: FailureIO, Err: err}
	}

	st, err := s.decode(data)
	if err != nil {
		return nil, &StorageError{Op: "load", Path: s.path, Kind: FailureParse, Err: err}
	}
	return st, nil
}

// Save writes st atomically, creating the parent directory if needed.
func (s *Store) Save(st *State) error {
	data, err := s.encode(st)
	if err != nil {
		return &StorageError{Op: "save", Path: s.path, Kind: FailureParse, Err: err}
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &StorageError{Op: "save", Path: s.path, Kind: FailureIO, Err: err}
		}
	}
	if err := atomicwriter.WriteFile(s.path, data, 0o600); err != nil {
		return &StorageError{Op: "save", Path: s.path, Kind: FailureIO, Err: err}
	}
	return nil
}

// Update loads the state, applies fn and saves the result while holding the
// store's lock. Nothing is saved when fn returns an error.
func (s *Store) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.Save(st)
}

func (s *Store) encode(st *State) ([]byte, error) {
	if st == nil {
		st = New()
	}
	doc := *st
	doc.FormatVersion = FormatVersion
	if doc.Pods == nil {
		doc.Pods = make(map[string]*pod.Record)
	}
	if s.yaml {
		return yaml.Marshal(doc)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (s *Store) decode(data []byte) (*State, error) {
	var st State
	var err error
	if s.yaml {
		err = yaml.Unmarshal(data, &st)
	} else {
		err = json.Unmarshal(data, &st)
	}
	if err != nil {
		return nil, err
	}

	if st.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", st.FormatVersion)
	}
	if st.Pods == nil {
		st.Pods = make(map[string]*pod.Record)
	}
	for name, r := range st.Pods {
		if r == nil {
			return nil, fmt.Errorf("pod %q: empty record", name)
		}
		if r.Name != name {
			return nil, fmt.Errorf("pod %q: record is named %q", name, r.Name)
		}
	}
	return &st, nil
}
