package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/memoir/internal/config"
	"github.com/felixgeelhaar/memoir/internal/interview"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		name  CommandName
		arg   string
		isCmd bool
	}{
		{"/help", CmdHelp, "", true},
		{"  /memoir literary ", CmdMemoir, "literary", true},
		{"/write 家书", CmdMemoir, "家书", true},
		{"/QUIT", CmdExit, "", true},
		{"/save", CmdSave, "", true},
		{"/continue", CmdContinue, "", true},
		{"/dance now", CommandName("dance"), "now", true},
		{"I was born in 1951", CmdNone, "", false},
		{"continue", CmdNone, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, ok := ParseCommand(tt.input)
			if ok != tt.isCmd {
				t.Errorf("Expected isCmd %v, got %v", tt.isCmd, ok)
			}
			if cmd.Name != tt.name {
				t.Errorf("Expected name '%s', got '%s'", tt.name, cmd.Name)
			}
			if cmd.Arg != tt.arg {
				t.Errorf("Expected arg '%s', got '%s'", tt.arg, cmd.Arg)
			}
		})
	}
}

func TestHandle(t *testing.T) {
	e, st := newTestEngine(t, config.Default(), nil)
	ctx := context.Background()
	s := toDeep(t, e)

	t.Run("Help", func(t *testing.T) {
		before := len(s.Messages)
		out, err := e.Handle(ctx, s, "/help")
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if out.Help != HelpText {
			t.Error("Expected help text")
		}
		if len(s.Messages) != before {
			t.Error("Expected help to leave the session unchanged")
		}
	})

	t.Run("Turn", func(t *testing.T) {
		out, err := e.Handle(ctx, s, "We lived in a small house by the canal and I fished with my brothers.")
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if out.Turn == nil || out.Turn.Reply == "" {
			t.Errorf("Expected a turn, got %+v", out)
		}
	})

	t.Run("Save", func(t *testing.T) {
		saves := st.Saves()
		out, err := e.Handle(ctx, s, "/save")
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if !out.Saved || st.Saves() != saves+1 {
			t.Errorf("Expected one forced save, got %d", st.Saves()-saves)
		}
	})

	t.Run("Memoir", func(t *testing.T) {
		out, err := e.Handle(ctx, s, "/memoir 文学")
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if out.Document == nil || out.Document.Style != interview.StyleLiterary {
			t.Errorf("Expected literary document, got %+v", out.Document)
		}
		if _, err := e.Handle(ctx, s, "/memoir haiku"); !errors.Is(err, interview.ErrUnknownStyle) {
			t.Errorf("Expected ErrUnknownStyle, got %v", err)
		}
	})

	t.Run("Continue", func(t *testing.T) {
		out, err := e.Handle(ctx, s, "/continue")
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if out.Turn == nil || out.Turn.Stage != interview.StageDeepInterview {
			t.Errorf("Expected deep interview turn, got %+v", out.Turn)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := e.Handle(ctx, s, "/dance"); !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("Expected ErrUnknownCommand, got %v", err)
		}
	})

	t.Run("Exit", func(t *testing.T) {
		out, err := e.Handle(ctx, s, "/exit")
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if !out.Closed {
			t.Error("Expected session closed")
		}
		if _, err := e.Handle(ctx, s, "hello"); !errors.Is(err, interview.ErrSessionClosed) {
			t.Errorf("Expected ErrSessionClosed, got %v", err)
		}
	})
}

func TestSummarize(t *testing.T) {
	e, _ := newTestEngine(t, config.Default(), nil)
	s := toDeep(t, e)
	mustSubmit(t, e, s, "I don't know")

	sum := e.Summarize(s)
	if sum.Exchanges != 3 {
		t.Errorf("Expected 3 exchanges, got %d", sum.Exchanges)
	}
	if sum.Messages != 7 {
		t.Errorf("Expected 7 messages, got %d", sum.Messages)
	}
	if sum.FollowUps != 1 {
		t.Errorf("Expected 1 follow-up, got %d", sum.FollowUps)
	}
	if len(sum.TopicsCovered) != 1 || sum.TopicsCovered[0] != interview.TopicChildhood {
		t.Errorf("Expected childhood covered, got %v", sum.TopicsCovered)
	}
	if len(sum.Missing) != 0 {
		t.Errorf("Expected no missing fields, got %v", sum.Missing)
	}
	if sum.Duration <= 0 {
		t.Errorf("Expected positive duration, got %v", sum.Duration)
	}
}
