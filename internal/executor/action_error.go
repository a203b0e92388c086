package executor

import (
	"fmt"

	"github.com/nholik/craft-sentinel/internal/engine"
)

// ActionError records which action of a plan failed. A pass that ends in an
// ActionError is retried by the next trigger, never by the runner itself.
type ActionError struct {
	Action engine.Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Action.Kind, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
