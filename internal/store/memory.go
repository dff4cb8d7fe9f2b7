package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

// MemoryStore holds records in process memory. SaveErr, when set, fails
// every save; tests use it to exercise persistence failures.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]*Record
	artifacts map[string]*Artifact
	contents  map[string][]byte
	config    map[string]string
	saves     int

	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*Record),
		artifacts: make(map[string]*Artifact),
		contents:  make(map[string][]byte),
		config:    make(map[string]string),
	}
}

func (m *MemoryStore) SaveSession(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.sessions[rec.SessionID] = rec.clone()
	m.saves++
	return nil
}

func (m *MemoryStore) LoadSession(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interview.ErrSessionNotFound, id)
	}
	return rec.clone(), nil
}

// Saves reports how many saves succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) SetSaveErr(err error) {
	m.mu.Lock()
	m.SaveErr = err
	m.mu.Unlock()
}

func (m *MemoryStore) ListSessions(ctx context.Context) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Summary, 0, len(m.sessions))
	for _, rec := range m.sessions {
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryStore) SaveArtifact(ctx context.Context, artifact *Artifact, content []byte) error {
	if _, err := artifactFile("", artifact.Path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *artifact
	m.artifacts[artifact.ID] = &cp
	m.contents[artifact.ID] = append([]byte(nil), content...)
	return nil
}

func (m *MemoryStore) GetArtifact(ctx context.Context, id string) (*Artifact, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, nil, fmt.Errorf("artifact not found: %s", id)
	}
	cp := *a
	return &cp, append([]byte(nil), m.contents[id]...), nil
}

func (m *MemoryStore) ListArtifacts(ctx context.Context, sessionID string) ([]*Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Artifact
	for _, a := range m.artifacts {
		if a.SessionID == sessionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SetConfig(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

func (m *MemoryStore) GetConfig(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config[key], nil
}

func (m *MemoryStore) Close() error { return nil }
