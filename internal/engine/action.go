package engine

import (
	"fmt"

	"github.com/nholik/craft-sentinel/internal/health"
)

// Flags the engine defines semantics for. No other flag is ever read.
const (
	FlagInstalled = "minecraft.installed"
	FlagStarted   = "minecraft.started"
)

// Kind names a lifecycle action.
type Kind string

const (
	CreateSystemAccount     Kind = "CreateSystemAccount"
	RenderEulaAcceptance    Kind = "RenderEulaAcceptance"
	RenderServiceProperties Kind = "RenderServiceProperties"
	RenderServiceUnit       Kind = "RenderServiceUnit"
	LinkResource            Kind = "LinkResource"
	ReloadUnitManager       Kind = "ReloadUnitManager"
	CloseAllOpenPorts       Kind = "CloseAllOpenPorts"
	OpenPort                Kind = "OpenPort"
	StartService            Kind = "StartService"
	RestartService          Kind = "RestartService"
	ReportStatus            Kind = "ReportStatus"
)

// Action is one step of a plan.
type Action struct {
	Kind Kind `json:"kind"`
	// Port is set for OpenPort.
	Port int `json:"port,omitempty"`
	// Status is set for ReportStatus.
	Status health.Report `json:"status"`
	// Sets lists flag deltas to commit after the action succeeds.
	Sets map[string]bool `json:"sets,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case OpenPort:
		return fmt.Sprintf("%s(%d)", a.Kind, a.Port)
	case ReportStatus:
		return fmt.Sprintf("%s(%s: %s)", a.Kind, a.Status.Level, a.Status.Message)
	}
	return string(a.Kind)
}

// Plan is the ordered output of one pass.
type Plan struct {
	Trigger Trigger `json:"trigger"`
	// Handlers names the handlers that fired, in order.
	Handlers []string `json:"handlers,omitempty"`
	Actions  []Action `json:"actions"`
}

// Empty reports whether the plan has no actions.
func (p Plan) Empty() bool {
	return len(p.Actions) == 0
}

// Kinds returns the action kinds in order.
func (p Plan) Kinds() []Kind {
	kinds := make([]Kind, 0, len(p.Actions))
	for _, action := range p.Actions {
		kinds = append(kinds, action.Kind)
	}
	return kinds
}

// Contains reports whether the plan includes an action of kind.
func (p Plan) Contains(kind Kind) bool {
	return p.Index(kind) >= 0
}

// Index returns the position of the first action of kind, or -1.
func (p Plan) Index(kind Kind) int {
	for i, action := range p.Actions {
		if action.Kind == kind {
			return i
		}
	}
	return -1
}

// FlagDeltas folds every action's deltas in order; later actions win.
func (p Plan) FlagDeltas() map[string]bool {
	deltas := map[string]bool{}
	for _, action := range p.Actions {
		for name, value := range action.Sets {
			deltas[name] = value
		}
	}
	return deltas
}

// Strings renders each action for logging.
func (p Plan) Strings() []string {
	out := make([]string, 0, len(p.Actions))
	for _, action := range p.Actions {
		out = append(out, action.String())
	}
	return out
}
