package runner

import "fmt"

// Stage names the part of a pass that failed before or after the plan ran.
type Stage string

const (
	StageOptions Stage = "load options"
	StageState   Stage = "load state"
	StageService Stage = "query service"
	StageCommit  Stage = "commit configuration"
)

// PassError is a pass failure outside of plan execution. Action failures
// surface as *executor.ActionError instead. Neither stops the runner loop.
type PassError struct {
	Stage Stage
	Err   error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &PassError{Stage: stage, Err: err}
}
