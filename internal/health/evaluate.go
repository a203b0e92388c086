package health

import (
	"fmt"

	"github.com/nholik/craft-sentinel/internal/mcping"
)

// Outcome classifies a status probe.
type Outcome string

const (
	OutcomeReported    Outcome = "reported"
	OutcomeNotRunning  Outcome = "not_running"
	OutcomeUnreachable Outcome = "unreachable"
	OutcomeError       Outcome = "error"
)

// Evaluate turns a running observation and a status query result into a report.
// The returned bool is false when no report should be published; the status
// then stays at its last known value.
func Evaluate(running bool, result mcping.Result, queryErr error, gamemode string) (Report, Outcome, bool) {
	if !running {
		return Waiting(MessageNotRunning), OutcomeNotRunning, true
	}
	if queryErr != nil {
		if mcping.IsUnreachable(queryErr) {
			return Report{}, OutcomeUnreachable, false
		}
		return Report{}, OutcomeError, false
	}
	return Active(fmt.Sprintf("%d players online (%s)", result.Players.Online, gamemode)), OutcomeReported, true
}
