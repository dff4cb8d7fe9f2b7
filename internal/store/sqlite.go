package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

const (
	sqliteDriver = "sqlite"
	sqliteDSNOpt = "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)"
)

type SQLiteStore struct {
	db          *sql.DB
	artifactDir string
}

func NewSQLiteStore(dbPath, artifactDir string) (*SQLiteStore, error) {
	// Ensure directories exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	if err := os.MkdirAll(artifactDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	db, err := sql.Open(sqliteDriver, dbPath+sqliteDSNOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:          db,
		artifactDir: artifactDir,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			stage TEXT NOT NULL,
			profile TEXT NOT NULL,
			topics_covered TEXT NOT NULL,
			followed_up TEXT NOT NULL,
			current_topic TEXT NOT NULL,
			profile_turns INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			stage_at_time TEXT NOT NULL,
			topic TEXT NOT NULL,
			PRIMARY KEY (session_id, seq),
			FOREIGN KEY(session_id) REFERENCES sessions(id)
		);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			path TEXT,
			type TEXT,
			style TEXT,
			created_at TEXT,
			digest TEXT,
			FOREIGN KEY(session_id) REFERENCES sessions(id)
		);`,
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Configuration Implementation

func (s *SQLiteStore) SetConfig(key, value string) error {
	query := `INSERT INTO configuration (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := s.db.Exec(query, key, value)
	return err
}

func (s *SQLiteStore) GetConfig(key string) (string, error) {
	query := `SELECT value FROM configuration WHERE key = ?`
	row := s.db.QueryRow(query, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// Session Implementation

// SaveSession upserts the session row and appends any messages not yet
// stored, in one transaction.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec *Record) error {
	profileJSON, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	coveredJSON, err := json.Marshal(nonNil(rec.TopicsCovered))
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}
	followedJSON, err := json.Marshal(nonNil(rec.FollowedUp))
	if err != nil {
		return fmt.Errorf("failed to marshal follow-ups: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // #nosec G104

	const upsert = `
INSERT INTO sessions (id, stage, profile, topics_covered, followed_up, current_topic, profile_turns, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	stage = excluded.stage,
	profile = excluded.profile,
	topics_covered = excluded.topics_covered,
	followed_up = excluded.followed_up,
	current_topic = excluded.current_topic,
	profile_turns = excluded.profile_turns,
	updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert,
		rec.SessionID, rec.Stage, string(profileJSON), string(coveredJSON), string(followedJSON),
		rec.CurrentTopic, rec.ProfileTurns, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, rec.SessionID).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}
	if stored > len(rec.Messages) {
		return fmt.Errorf("session %s: record has %d messages but %d are stored", rec.SessionID, len(rec.Messages), stored)
	}

	const insert = `INSERT OR IGNORE INTO messages (session_id, seq, role, text, timestamp, stage_at_time, topic) VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i := stored; i < len(rec.Messages); i++ {
		m := rec.Messages[i]
		if _, err := tx.ExecContext(ctx, insert,
			rec.SessionID, i, m.Role, m.Text, formatTime(m.Timestamp), m.StageAtTime, m.Topic,
		); err != nil {
			return fmt.Errorf("failed to append message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (*Record, error) {
	const query = `SELECT id, stage, profile, topics_covered, followed_up, current_topic, profile_turns, created_at, updated_at FROM sessions WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	var rec Record
	var profileJSON, coveredJSON, followedJSON, created, updated string
	if err := row.Scan(&rec.SessionID, &rec.Stage, &profileJSON, &coveredJSON, &followedJSON,
		&rec.CurrentTopic, &rec.ProfileTurns, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", interview.ErrSessionNotFound, id)
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(profileJSON), &rec.Profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	if err := json.Unmarshal([]byte(coveredJSON), &rec.TopicsCovered); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topics: %w", err)
	}
	if err := json.Unmarshal([]byte(followedJSON), &rec.FollowedUp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal follow-ups: %w", err)
	}
	var err error
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, text, timestamp, stage_at_time, topic FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rec.Messages = []MessageRecord{}
	for rows.Next() {
		var m MessageRecord
		var ts string
		if err := rows.Scan(&m.Role, &m.Text, &ts, &m.StageAtTime, &m.Topic); err != nil {
			return nil, err
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		rec.Messages = append(rec.Messages, m)
	}
	return &rec, rows.Err()
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]Summary, error) {
	const query = `
SELECT s.id, s.stage, s.profile, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
FROM sessions s
ORDER BY s.updated_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var profileJSON, created, updated string
		if err := rows.Scan(&sum.ID, &sum.Stage, &profileJSON, &created, &updated, &sum.Messages); err != nil {
			return nil, err
		}
		var profile map[string]string
		if err := json.Unmarshal([]byte(profileJSON), &profile); err == nil {
			sum.Name = profile[string(interview.FieldName)]
		}
		sum.CreatedAt, _ = parseTime(created)
		sum.UpdatedAt, _ = parseTime(updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Memoir exports live as files under artifactDir; the table holds their
// metadata and digest.

func (s *SQLiteStore) SaveArtifact(ctx context.Context, artifact *Artifact, content []byte) error {
	full, err := artifactFile(s.artifactDir, artifact.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	if err := os.WriteFile(full, content, 0600); err != nil {
		return fmt.Errorf("failed to write artifact content: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, session_id, path, type, style, created_at, digest) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID, artifact.SessionID, artifact.Path, artifact.Type, artifact.Style, formatTime(artifact.CreatedAt), artifact.Digest)
	if err != nil {
		// No row points at the file, so nothing would ever clean it up.
		_ = os.Remove(full)
		return fmt.Errorf("failed to record artifact %s: %w", artifact.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetArtifact(ctx context.Context, id string) (*Artifact, []byte, error) {
	var a Artifact
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, path, type, style, created_at, digest FROM artifacts WHERE id = ?`, id).
		Scan(&a.ID, &a.SessionID, &a.Path, &a.Type, &a.Style, &created, &a.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("artifact not found: %s", id)
	}
	if err != nil {
		return nil, nil, err
	}
	a.CreatedAt, _ = parseTime(created)

	full, err := artifactFile(s.artifactDir, a.Path)
	if err != nil {
		return nil, nil, err
	}
	content, err := os.ReadFile(full) // #nosec G304
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read memoir %s: %w", id, err)
	}
	return &a, content, nil
}

func (s *SQLiteStore) ListArtifacts(ctx context.Context, sessionID string) ([]*Artifact, error) {
	query := `SELECT id, session_id, path, type, style, created_at, digest FROM artifacts WHERE session_id = ? ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		var a Artifact
		var created string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Path, &a.Type, &a.Style, &created, &a.Digest); err != nil {
			return nil, err
		}
		a.CreatedAt, _ = parseTime(created)
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
