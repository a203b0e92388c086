package options

import (
	"sort"
	"strconv"
)

// Snapshot pairs the configuration the server was last reconciled against
// with the configuration currently requested.
type Snapshot struct {
	Previous map[string]string
	Current  map[string]string
}

// NewSnapshot copies both maps so later mutation by the caller is not observed.
func NewSnapshot(previous, current map[string]string) Snapshot {
	return Snapshot{Previous: clone(previous), Current: clone(current)}
}

// Get returns the current value of name.
func (s Snapshot) Get(name string) string {
	return s.Current[name]
}

// Int returns the current value of name as an integer, or 0 if it does not parse.
func (s Snapshot) Int(name string) int {
	n, err := strconv.Atoi(s.Current[name])
	if err != nil {
		return 0
	}
	return n
}

// Changed reports whether name differs between the previous and current values.
func (s Snapshot) Changed(name string) bool {
	prev, hadPrev := s.Previous[name]
	cur, hasCur := s.Current[name]
	return hadPrev != hasCur || prev != cur
}

// ChangedNames returns every option whose value differs.
func (s Snapshot) ChangedNames() []string {
	return Diff(s.Previous, s.Current)
}

// AnyChanged reports whether any option differs.
func (s Snapshot) AnyChanged() bool {
	return len(s.ChangedNames()) > 0
}

// Diff returns the sorted names whose values differ between previous and
// current, including names present on only one side.
func Diff(previous, current map[string]string) []string {
	changed := make([]string, 0)
	for name, value := range current {
		if prev, ok := previous[name]; !ok || prev != value {
			changed = append(changed, name)
		}
	}
	for name := range previous {
		if _, ok := current[name]; !ok {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

func clone(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
