// Package queries persists user-defined queries as a JSON file so
// condition trees and column selections survive restarts.
package queries

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/qlogstats/qlogstats/internal/query"
)

// ErrNotFound is returned when no saved query has the requested ID or name.
var ErrNotFound = errors.New("saved query not found")

const fileVersion = "1.0"

// Saved is one stored query: a name, the columns to show and the
// condition tree to apply.
type Saved struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Columns    []string     `json:"columns"`
	Conditions *query.Group `json:"conditions"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type queryFile struct {
	Version string  `json:"version"`
	Queries []Saved `json:"queries"`
}

// Manager loads and stores saved queries at a fixed file path.
type Manager struct {
	path string
}

// NewManager returns a manager backed by the given JSON file. The file
// does not have to exist yet.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the backing file path.
func (m *Manager) Path() string {
	return m.path
}

// List returns all saved queries sorted by name.
func (m *Manager) List() ([]Saved, error) {
	file, err := m.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(file.Queries, func(i, j int) bool {
		return file.Queries[i].Name < file.Queries[j].Name
	})
	return file.Queries, nil
}

// Get returns the saved query whose ID or name matches key.
func (m *Manager) Get(key string) (Saved, error) {
	file, err := m.load()
	if err != nil {
		return Saved{}, err
	}
	for _, q := range file.Queries {
		if q.ID == key || q.Name == key {
			return q, nil
		}
	}
	return Saved{}, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Save stores a query. A query with an empty ID is created with a
// fresh one; a known ID updates the existing entry in place.
func (m *Manager) Save(q Saved) (Saved, error) {
	if q.Name == "" {
		return Saved{}, fmt.Errorf("saved query needs a name")
	}
	file, err := m.load()
	if err != nil {
		return Saved{}, err
	}
	now := time.Now().UTC()
	if q.ID == "" {
		q.ID = uuid.NewString()
		q.CreatedAt = now
		q.UpdatedAt = now
		file.Queries = append(file.Queries, q)
		return q, m.store(file)
	}
	for i, existing := range file.Queries {
		if existing.ID == q.ID {
			q.CreatedAt = existing.CreatedAt
			q.UpdatedAt = now
			file.Queries[i] = q
			return q, m.store(file)
		}
	}
	return Saved{}, fmt.Errorf("%w: %s", ErrNotFound, q.ID)
}

// Delete removes the query whose ID or name matches key.
func (m *Manager) Delete(key string) error {
	file, err := m.load()
	if err != nil {
		return err
	}
	for i, q := range file.Queries {
		if q.ID == key || q.Name == key {
			file.Queries = append(file.Queries[:i], file.Queries[i+1:]...)
			return m.store(file)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

func (m *Manager) load() (queryFile, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return queryFile{Version: fileVersion}, nil
	}
	if err != nil {
		return queryFile{}, fmt.Errorf("failed to read saved queries: %w", err)
	}
	var file queryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return queryFile{}, fmt.Errorf("failed to parse saved queries: %w", err)
	}
	if file.Version == "" {
		file.Version = fileVersion
	}
	return file, nil
}

func (m *Manager) store(file queryFile) error {
	file.Version = fileVersion
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create query dir: %w", err)
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode saved queries: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(m.path), "queries-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp query file: %w", err)
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.Write(append(data, '\n')); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write saved queries: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close saved queries: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to store saved queries: %w", err)
	}
	return nil
}
