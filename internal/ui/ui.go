// Package ui carries interview progress from the engine to whatever front
// end is attached: the line REPL, the full-screen TUI or nothing at all.
package ui

import (
	"fmt"

	"github.com/felixgeelhaar/memoir/internal/engine"
	"github.com/felixgeelhaar/memoir/internal/interview"
)

// UI receives interview progress.
type UI interface {
	UpdateStage(stage interview.Stage)
	UpdateProgress(covered, total int)
	Log(msg string)
}

// SilentUI drops everything.
type SilentUI struct{}

func (s SilentUI) UpdateStage(stage interview.Stage) {}
func (s SilentUI) UpdateProgress(covered, total int) {}
func (s SilentUI) Log(msg string) {}

// Attach forwards bus events for one session to u. total is the number of
// topics in the catalogue and scales the progress reports.
func Attach(bus *engine.EventBus, u UI, sessionID string, total int) {
	if bus == nil || u == nil {
		return
	}
	bus.SubscribeAll(func(ev engine.Event) {
		if ev.SessionID != sessionID {
			return
		}
		switch ev.Type {
		case engine.EventStageChanged:
			if to, ok := ev.Data["to"].(interview.Stage); ok {
				u.UpdateStage(to)
			}
		case engine.EventTurnCommitted:
			if covered, ok := ev.Data["covered"].(int); ok {
				u.UpdateProgress(covered, total)
			}
		case engine.EventFieldDropped:
			u.Log(fmt.Sprintf("ignored a detail: %v", ev.Data["error"]))
		case engine.EventTopicsExhausted:
			u.Log("every topic has been covered")
		case engine.EventMemoirWritten:
			u.Log(fmt.Sprintf("memoir written (%v, %v sections)", ev.Data["style"], ev.Data["sections"]))
		case engine.EventCollaboratorFailed:
			u.Log(fmt.Sprintf("%v failed: %v", ev.Data["op"], ev.Data["error"]))
		case engine.EventPersistenceFailed:
			u.Log(fmt.Sprintf("not saved: %v", ev.Data["error"]))
		case engine.EventSessionClosed:
			u.UpdateStage(interview.StageClosed)
		}
	})
}
