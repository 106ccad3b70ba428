// Package state tracks which components are installed under a root
// directory. The state file is the single source of truth for installed
// versions and is written with the write-then-rename pattern so a crash
// never leaves a torn file behind.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SchemaVersion is bumped whenever the on-disk layout changes shape.
const SchemaVersion = 1

const stateFileName = "state.json"

// Record describes one installed component instance.
type Record struct {
	Name         string    `json:"name"`
	TargetTriple string    `json:"target_triple,omitempty"`
	Version      string    `json:"version"`
	InstallPath  string    `json:"install_path"`
	InstalledAt  time.Time `json:"installed_at"`
}

// Identity returns the key a record is stored under. Components that are
// not target-specific use the bare name.
func (r Record) Identity() string {
	if r.TargetTriple == "" {
		return r.Name
	}
	return r.Name + "@" + r.TargetTriple
}

// InstallState is the full persisted state document.
type InstallState struct {
	Version   int               `json:"version"`
	LastRunID string            `json:"last_run_id,omitempty"`
	Records   map[string]Record `json:"records"`
}

// PersistError indicates the state file could not be durably written.
// Installed files on disk are fine; the record of them is not.
type PersistError struct {
	Path  string
	Cause error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist state to %s: %v", e.Path, e.Cause)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}

// Store loads, mutates and persists install state for one root directory.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	dir   string
	state InstallState
}

// Load reads the state file under dir. A missing file yields an empty
// state, which is what a fresh root looks like.
func Load(dir string) (*Store, error) {
	s := &Store{
		dir: dir,
		state: InstallState{
			Version: SchemaVersion,
			Records: make(map[string]Record),
		},
	}

	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var loaded InstallState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("unmarshal state file: %w", err)
	}
	if loaded.Version > SchemaVersion {
		return nil, fmt.Errorf("state file schema version %d is newer than supported version %d", loaded.Version, SchemaVersion)
	}
	if loaded.Records == nil {
		loaded.Records = make(map[string]Record)
	}
	loaded.Version = SchemaVersion
	s.state = loaded

	return s, nil
}

// Get returns the record stored under identity.
func (s *Store) Get(identity string) (Record, bool) {
	r, ok := s.state.Records[identity]
	return r, ok
}

// Put adds or replaces a record in memory. Persist makes it durable.
func (s *Store) Put(r Record) {
	s.state.Records[r.Identity()] = r
}

// Remove drops the record stored under identity, reporting whether one
// was present.
func (s *Store) Remove(identity string) bool {
	if _, ok := s.state.Records[identity]; !ok {
		return false
	}
	delete(s.state.Records, identity)
	return true
}

// List returns all records ordered by identity.
func (s *Store) List() []Record {
	out := make([]Record, 0, len(s.state.Records))
	for _, r := range s.state.Records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity() < out[j].Identity()
	})
	return out
}

// SetRunID records the identifier of the run that last mutated state.
func (s *Store) SetRunID(id string) {
	s.state.LastRunID = id
}

// Persist writes the state file atomically: marshal, write a temporary
// sibling, rename over the final path, then sync the directory.
func (s *Store) Persist() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return &PersistError{Path: s.dir, Cause: err}
	}

	finalPath := filepath.Join(s.dir, stateFileName)
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return &PersistError{Path: finalPath, Cause: fmt.Errorf("marshal state: %w", err)}
	}
	data = append(data, '\n')

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return &PersistError{Path: finalPath, Cause: fmt.Errorf("write temporary file: %w", err)}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return &PersistError{Path: finalPath, Cause: fmt.Errorf("rename into place: %w", err)}
	}

	if df, err := os.Open(s.dir); err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return &PersistError{Path: finalPath, Cause: fmt.Errorf("sync directory: %w", syncErr)}
		}
		df.Close()
	}

	return nil
}
