// Package state persists deployment records between invocations of the tool.
// The store is one small JSON document on disk, loaded whole and saved whole;
// the Docker daemon stays the source of truth for live container state.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"plinth/types"
)

const documentVersion = "1"

// ErrNotFound is returned when no deployment record exists for an app.
var ErrNotFound = errors.New("no deployment record")

type document struct {
	Version     string                            `json:"version"`
	Deployments map[string]types.DeploymentRecord `json:"deployments"`
	UpdatedAt   time.Time                         `json:"updated_at"`
}

// Store is a file-backed collection of deployment records keyed by app name.
type Store struct {
	mu   sync.RWMutex
	path string
	doc  document
}

// Open loads the store at path. A missing file yields an empty store; the
// file is only created on the first Save.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		doc: document{
			Version:     documentVersion,
			Deployments: make(map[string]types.DeploymentRecord),
		},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if s.doc.Deployments == nil {
		s.doc.Deployments = make(map[string]types.DeploymentRecord)
	}
	return s, nil
}

// Get returns the deployment record for app, or ErrNotFound.
func (s *Store) Get(app string) (types.DeploymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.doc.Deployments[app]
	if !ok {
		return types.DeploymentRecord{}, fmt.Errorf("%w for app %s", ErrNotFound, app)
	}
	return rec, nil
}

// Put stores rec under its app name and saves. A fresh record gets an ID and
// a creation time; an update keeps both and only moves UpdatedAt.
func (s *Store) Put(rec types.DeploymentRecord) (types.DeploymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if prev, ok := s.doc.Deployments[rec.App]; ok {
		rec.ID = prev.ID
		rec.CreatedAt = prev.CreatedAt
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	s.doc.Deployments[rec.App] = rec
	if err := s.save(); err != nil {
		return types.DeploymentRecord{}, err
	}
	return rec, nil
}

// Delete removes the record for app and saves. Deleting an absent record is
// not an error.
func (s *Store) Delete(app string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Deployments[app]; !ok {
		return nil
	}
	delete(s.doc.Deployments, app)
	return s.save()
}

// List returns all deployment records sorted by app name.
func (s *Store) List() []types.DeploymentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]types.DeploymentRecord, 0, len(s.doc.Deployments))
	for _, rec := range s.doc.Deployments {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].App < recs[j].App })
	return recs
}

// save writes the document via a temp file and rename so a crash mid-write
// never leaves a torn state file. The file is 0600, records may reference
// private infrastructure.
func (s *Store) save() error {
	s.doc.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set state file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file %s: %w", s.path, err)
	}
	return nil
}
