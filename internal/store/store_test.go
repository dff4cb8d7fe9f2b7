package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

func sampleSession() *interview.Session {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := interview.NewSession("s1", start)
	s.Stage = interview.StageDeepInterview
	s.Profile = interview.Profile{Name: "Li Hua", BirthYear: 1951, Hometown: "Suzhou"}
	s.ProfileTurns = 2
	s.Append(interview.Message{Role: interview.RoleAssistant, Text: "Hello!", Timestamp: start, StageAtTime: interview.StageGreeting})
	s.Append(interview.Message{Role: interview.RoleUser, Text: "I'm Li Hua", Timestamp: start.Add(time.Second), StageAtTime: interview.StageProfileCollection})
	s.Append(interview.Message{Role: interview.RoleAssistant, Text: "Tell me about your childhood.", Timestamp: start.Add(2 * time.Second), StageAtTime: interview.StageDeepInterview, Topic: interview.TopicChildhood})
	s.Append(interview.Message{Role: interview.RoleUser, Text: "We lived by the canal.", Timestamp: start.Add(3500 * time.Millisecond), StageAtTime: interview.StageDeepInterview, Topic: interview.TopicChildhood})
	s.MarkCovered(interview.TopicChildhood)
	s.MarkFollowedUp(interview.TopicChildhood)
	s.CurrentTopic = interview.TopicChildhood
	return s
}

func backends(t *testing.T) map[string]Storage {
	tmpDir, err := os.MkdirTemp("", "store-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	sqlite, err := NewSQLiteStore(filepath.Join(tmpDir, "meta.db"), filepath.Join(tmpDir, "artifacts"))
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	files, err := NewFileStore(filepath.Join(tmpDir, "files"))
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	return map[string]Storage{
		"sqlite": sqlite,
		"file":   files,
		"memory": NewMemoryStore(),
	}
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleSession()
			if err := s.SaveSession(ctx, FromSession(want)); err != nil {
				t.Fatalf("SaveSession failed: %v", err)
			}
			// A second save of the same state must not duplicate messages.
			if err := s.SaveSession(ctx, FromSession(want)); err != nil {
				t.Fatalf("repeat SaveSession failed: %v", err)
			}

			rec, err := s.LoadSession(ctx, "s1")
			if err != nil {
				t.Fatalf("LoadSession failed: %v", err)
			}
			got, err := rec.Session()
			if err != nil {
				t.Fatalf("Session failed: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Expected %+v, got %+v", want, got)
			}

			// Append and save again.
			want.Append(interview.Message{Role: interview.RoleAssistant, Text: "What games did you play?", Timestamp: want.UpdatedAt.Add(time.Second), StageAtTime: interview.StageDeepInterview, Topic: interview.TopicChildhood})
			if err := s.SaveSession(ctx, FromSession(want)); err != nil {
				t.Fatalf("SaveSession failed: %v", err)
			}
			rec, _ = s.LoadSession(ctx, "s1")
			if len(rec.Messages) != 5 {
				t.Errorf("Expected 5 messages, got %d", len(rec.Messages))
			}

			list, err := s.ListSessions(ctx)
			if err != nil {
				t.Fatalf("ListSessions failed: %v", err)
			}
			if len(list) != 1 || list[0].Name != "Li Hua" || list[0].Messages != 5 {
				t.Errorf("Expected one summary for Li Hua with 5 messages, got %+v", list)
			}
		})
	}
}

func TestStores_EmptySession(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := interview.NewSession("empty", time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC))
			if err := s.SaveSession(ctx, FromSession(want)); err != nil {
				t.Fatalf("SaveSession failed: %v", err)
			}
			rec, err := s.LoadSession(ctx, "empty")
			if err != nil {
				t.Fatalf("LoadSession failed: %v", err)
			}
			got, err := rec.Session()
			if err != nil {
				t.Fatalf("Session failed: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Expected %+v, got %+v", want, got)
			}
		})
	}
}

func TestStores_NotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LoadSession(context.Background(), "non-existent")
			if !errors.Is(err, interview.ErrSessionNotFound) {
				t.Errorf("Expected ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestStores_Artifacts(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SaveSession(ctx, FromSession(sampleSession())); err != nil {
				t.Fatalf("SaveSession failed: %v", err)
			}
			art := &Artifact{
				ID:        "a1",
				SessionID: "s1",
				Path:      "s1/memoir-literary.md",
				Type:      "memoir_markdown",
				Style:     "literary",
				CreatedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
				Digest:    "d1",
			}
			if err := s.SaveArtifact(ctx, art, []byte("# Li Hua: A Memoir")); err != nil {
				t.Fatalf("SaveArtifact failed: %v", err)
			}

			gotArt, gotContent, err := s.GetArtifact(ctx, "a1")
			if err != nil {
				t.Fatalf("GetArtifact failed: %v", err)
			}
			if string(gotContent) != "# Li Hua: A Memoir" {
				t.Errorf("Expected memoir content, got '%s'", gotContent)
			}
			if gotArt.Digest != "d1" || gotArt.Style != "literary" {
				t.Errorf("Expected digest d1 and style literary, got %+v", gotArt)
			}

			list, _ := s.ListArtifacts(ctx, "s1")
			if len(list) != 1 {
				t.Errorf("Expected 1 artifact in list, got %d", len(list))
			}
			if _, _, err := s.GetArtifact(ctx, "non-existent"); err == nil {
				t.Error("Expected error for non-existent artifact")
			}

			for _, bad := range []string{"", "../escape.md", "s1/../../escape.md", "/tmp/escape.md"} {
				esc := *art
				esc.ID, esc.Path = "a2", bad
				if err := s.SaveArtifact(ctx, &esc, []byte("x")); err == nil {
					t.Errorf("Expected error for artifact path %q", bad)
				}
			}
			if list, _ := s.ListArtifacts(ctx, "s1"); len(list) != 1 {
				t.Errorf("Expected rejected artifacts to leave no record, got %d", len(list))
			}
		})
	}
}

func TestStores_Config(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SetConfig("k1", "v1"); err != nil {
				t.Fatalf("SetConfig failed: %v", err)
			}
			if err := s.SetConfig("k1", "v2"); err != nil {
				t.Fatalf("SetConfig failed: %v", err)
			}
			val, err := s.GetConfig("k1")
			if err != nil {
				t.Fatalf("GetConfig failed: %v", err)
			}
			if val != "v2" {
				t.Errorf("Expected 'v2', got '%s'", val)
			}
			val2, _ := s.GetConfig("unknown")
			if val2 != "" {
				t.Errorf("Expected empty string for unknown config, got '%s'", val2)
			}
		})
	}
}

func TestSQLiteStore_MissingArtifactFile(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "store-test-*")
	defer os.RemoveAll(tmpDir)

	s, err := NewSQLiteStore(filepath.Join(tmpDir, "meta.db"), filepath.Join(tmpDir, "artifacts"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	s.db.Exec("INSERT INTO artifacts (id, session_id, path, created_at) VALUES (?, ?, ?, ?)", "missing", "s1", "missing.md", formatTime(time.Now()))
	if _, _, err := s.GetArtifact(context.Background(), "missing"); err == nil {
		t.Error("Expected error for missing artifact file")
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "store-test-*")
	defer os.RemoveAll(tmpDir)
	dbPath := filepath.Join(tmpDir, "meta.db")
	artDir := filepath.Join(tmpDir, "artifacts")

	s, err := NewSQLiteStore(dbPath, artDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	want := sampleSession()
	if err := s.SaveSession(context.Background(), FromSession(want)); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	s.Close()

	s2, err := NewSQLiteStore(dbPath, artDir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s2.Close()
	rec, err := s2.LoadSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	got, _ := rec.Session()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected session to survive reopen, got %+v", got)
	}
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "store-test-*")
	defer os.RemoveAll(tmpDir)
	s, _ := NewFileStore(tmpDir)

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if err := s.SaveSession(context.Background(), &Record{SessionID: id}); err == nil {
			t.Errorf("Expected error for id %q", id)
		}
	}
}

func TestMemoryStore_SaveErr(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("disk full")
	s.SetSaveErr(boom)
	if err := s.SaveSession(context.Background(), FromSession(sampleSession())); !errors.Is(err, boom) {
		t.Errorf("Expected disk full, got %v", err)
	}
	if s.Saves() != 0 {
		t.Errorf("Expected 0 saves, got %d", s.Saves())
	}
	s.SetSaveErr(nil)
	if err := s.SaveSession(context.Background(), FromSession(sampleSession())); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if s.Saves() != 1 {
		t.Errorf("Expected 1 save, got %d", s.Saves())
	}
}

func TestOpen(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "store-test-*")
	defer os.RemoveAll(tmpDir)

	for _, driver := range []string{"sqlite", "file", "memory"} {
		s, err := Open(driver, filepath.Join(tmpDir, driver))
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", driver, err)
		}
		s.Close()
	}
	if _, err := Open("postgres", tmpDir); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
