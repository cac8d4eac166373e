package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"busreg.io/stager/internal/domain"
)

// FileStore keeps the stage pointer in a YAML state file for the CLI.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type stateFile struct {
	StageID  string `yaml:"stage_id"`
	Accepted string `yaml:"accepted_at,omitempty"`
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (f *FileStore) Load(context.Context) (*domain.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st stateFile
	if err := yaml.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", f.path, err)
	}
	if st.StageID == "" {
		return nil, nil
	}
	stage := &domain.Stage{ID: st.StageID}
	if st.Accepted != "" {
		_ = stage.Accepted.UnmarshalText([]byte(st.Accepted))
	}
	return stage, nil
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, stage *domain.Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := stateFile{StageID: stage.ID}
	if !stage.Accepted.IsZero() {
		b, _ := stage.Accepted.MarshalText()
		st.Accepted = string(b)
	}
	raw, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

// Clear implements Store. A missing file is already clear.
func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
