package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nholik/craft-sentinel/internal/health"
)

// Flags is the persisted set of named lifecycle conditions.
type Flags map[string]bool

// Has reports whether name is set.
func (f Flags) Has(name string) bool {
	return f[name]
}

// Clone returns an independent copy.
func (f Flags) Clone() Flags {
	out := make(Flags, len(f))
	for k, v := range f {
		if v {
			out[k] = true
		}
	}
	return out
}

// Apply commits deltas: true sets a flag, false clears it.
func (f Flags) Apply(deltas map[string]bool) {
	for name, value := range deltas {
		if value {
			f[name] = true
			continue
		}
		delete(f, name)
	}
}

// Names returns the set flags in sorted order.
func (f Flags) Names() []string {
	names := make([]string, 0, len(f))
	for name, value := range f {
		if value {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// StatusRecord is the last published workload status.
type StatusRecord struct {
	Level     health.Level `json:"level"`
	Message   string       `json:"message"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// State is everything the driver persists between reconciliation passes.
type State struct {
	Flags Flags `json:"flags"`
	// Applied holds the option values of the last committed pass.
	Applied             map[string]string `json:"applied_options"`
	ResourceFingerprint string            `json:"resource_fingerprint,omitempty"`
	Ports               []string          `json:"opened_ports"`
	Status              StatusRecord      `json:"status"`
}

// Empty returns a fresh state with initialized maps.
func Empty() State {
	return State{Flags: Flags{}, Applied: map[string]string{}}
}

func (s *State) normalize() {
	if s.Flags == nil {
		s.Flags = Flags{}
	}
	if s.Applied == nil {
		s.Applied = map[string]string{}
	}
}

// Store defines the interface for persisting state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Update loads state, applies fn and saves the result while holding lock.
// Nothing is saved when fn returns an error.
func Update(ctx context.Context, store Store, lock *sync.Mutex, fn func(*State) error) (State, error) {
	if lock != nil {
		lock.Lock()
		defer lock.Unlock()
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return State{}, err
	}
	loaded.normalize()
	if err := fn(&loaded); err != nil {
		return State{}, err
	}
	if err := store.Save(ctx, loaded); err != nil {
		return State{}, err
	}
	return loaded, nil
}
