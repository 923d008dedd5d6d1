package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the snapshot in a JSON file. Saves write a temp file in the
// same directory and rename it over the old one, so readers never see a
// partial snapshot.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type fileSnapshot struct {
	Entries []Entry `json:"entries"`
}

func (f *FileStore) Save(_ context.Context, entries []Entry) error {
	contents, err := json.MarshalIndent(fileSnapshot{Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding leaderboard: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating leaderboard temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing leaderboard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing leaderboard: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("error replacing leaderboard file: %w", err)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contents, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("error reading leaderboard: %w", err)
	}

	var snapshot fileSnapshot
	if err := json.Unmarshal(contents, &snapshot); err != nil {
		return nil, fmt.Errorf("error decoding leaderboard %s: %w", f.path, err)
	}
	return snapshot.Entries, nil
}
