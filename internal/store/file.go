package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

// FileStore keeps one JSON document per session under root/sessions,
// exported memoirs under root/artifacts and settings in root/settings.json.
type FileStore struct {
	root string
	mu   sync.Mutex
}

func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("filestore: root is required")
	}
	for _, dir := range []string{"sessions", "artifacts"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, err
		}
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) SaveSession(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.sessionPath(rec.SessionID)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(path, raw)
}

func (s *FileStore) LoadSession(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.sessionPath(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	raw, err := os.ReadFile(path) // #nosec G304
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", interview.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("filestore: decode session %s: %w", id, err)
	}
	return rec, nil
}

func (s *FileStore) ListSessions(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "sessions"))
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := s.LoadSession(ctx, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *FileStore) SaveArtifact(ctx context.Context, artifact *Artifact, content []byte) error {
	if err := validateSessionID(artifact.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	full, err := artifactFile(filepath.Join(s.root, "artifacts"), artifact.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact content: %w", err)
	}
	raw, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.root, "artifacts", artifact.ID+".meta.json"), raw)
}

func (s *FileStore) GetArtifact(ctx context.Context, id string) (*Artifact, []byte, error) {
	if err := validateSessionID(id); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(filepath.Join(s.root, "artifacts", id+".meta.json")) // #nosec G304
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("artifact not found: %s", id)
	}
	if err != nil {
		return nil, nil, err
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, nil, err
	}
	full, err := artifactFile(filepath.Join(s.root, "artifacts"), a.Path)
	if err != nil {
		return nil, nil, err
	}
	content, err := os.ReadFile(full) // #nosec G304
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact content: %w", err)
	}
	return &a, content, nil
}

func (s *FileStore) ListArtifacts(ctx context.Context, sessionID string) ([]*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches, err := filepath.Glob(filepath.Join(s.root, "artifacts", "*.meta.json"))
	if err != nil {
		return nil, err
	}
	var out []*Artifact
	for _, m := range matches {
		raw, err := os.ReadFile(m) // #nosec G304
		if err != nil {
			return nil, err
		}
		var a Artifact
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if a.SessionID == sessionID {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *FileStore) SetConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, err := s.readSettings()
	if err != nil {
		return err
	}
	settings[key] = value
	raw, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.root, "settings.json"), raw)
}

func (s *FileStore) GetConfig(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, err := s.readSettings()
	if err != nil {
		return "", err
	}
	return settings[key], nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readSettings() (map[string]string, error) {
	out := map[string]string{}
	raw, err := os.ReadFile(filepath.Join(s.root, "settings.json"))
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) sessionPath(id string) (string, error) {
	if err := validateSessionID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, "sessions", id+".json"), nil
}

// writeAtomic replaces path so readers never observe a half-written file.
func writeAtomic(path string, raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func validateSessionID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("filestore: invalid id %q", id)
	}
	if strings.ContainsAny(id, `/\`) || filepath.Clean(id) != id {
		return fmt.Errorf("filestore: invalid id %q", id)
	}
	return nil
}
