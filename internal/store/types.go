package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SessionStore is the durability boundary for interview sessions. A save
// replaces the stored record; messages are append-only, so repeating a save
// is harmless.
type SessionStore interface {
	SaveSession(ctx context.Context, rec *Record) error
	LoadSession(ctx context.Context, id string) (*Record, error)
}

// Summary is a session listing entry.
type Summary struct {
	ID        string
	Stage     string
	Name      string
	Messages  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Artifact represents an exported memoir kept alongside its session.
type Artifact struct {
	ID        string
	SessionID string
	Path      string // Relative path in the artifact store
	Type      string // e.g., "memoir_markdown"
	Style     string
	CreatedAt time.Time
	Digest    string // Content hash
}

// Storage is everything the command line needs from a backend.
type Storage interface {
	SessionStore

	ListSessions(ctx context.Context) ([]Summary, error)

	// SaveArtifact persists the metadata and the content
	SaveArtifact(ctx context.Context, artifact *Artifact, content []byte) error
	GetArtifact(ctx context.Context, id string) (*Artifact, []byte, error)
	ListArtifacts(ctx context.Context, sessionID string) ([]*Artifact, error)

	// Configuration Management
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)

	Close() error
}

// Open builds the backend named by driver rooted at dir.
func Open(driver, dir string) (Storage, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(filepath.Join(dir, "memoir.db"), filepath.Join(dir, "artifacts"))
	case "file", "json":
		return NewFileStore(dir)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", driver)
	}
}

// artifactFile resolves an artifact's relative path under root, refusing
// paths that would land outside it.
func artifactFile(root, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if rel == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact path %q", rel)
	}
	return filepath.Join(root, clean), nil
}
