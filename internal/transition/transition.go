package transition

import (
	"time"

	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/nholik/craft-sentinel/internal/state"
)

// StatusTransition captures a change of the published workload status level.
type StatusTransition struct {
	PreviousLevel   health.Level `json:"previous_level"`
	CurrentLevel    health.Level `json:"current_level"`
	PreviousMessage string       `json:"previous_message"`
	CurrentMessage  string       `json:"current_message"`
	At              time.Time    `json:"at"`
}

// Recovered reports whether the transition returns the service to active.
func (t StatusTransition) Recovered() bool {
	return t.CurrentLevel == health.LevelActive
}

// Detect compares the previously published status with the current one.
// Only level changes count; message updates at the same level (player
// counts, progress text) are not transitions. Entering maintenance is not
// reported, and neither is a first report that is already active.
func Detect(prev, current state.StatusRecord) *StatusTransition {
	if current.Level == "" || current.Level == health.LevelMaintenance {
		return nil
	}
	if prev.Level == "" && current.Level == health.LevelActive {
		return nil
	}
	if prev.Level == current.Level {
		return nil
	}

	at := current.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &StatusTransition{
		PreviousLevel:   prev.Level,
		CurrentLevel:    current.Level,
		PreviousMessage: prev.Message,
		CurrentMessage:  current.Message,
		At:              at,
	}
}
