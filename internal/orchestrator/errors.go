package orchestrator

import (
	"errors"
	"fmt"

	"agentctl/internal/agentsvc"
)

var (
	// ErrRunFailed matches every *RunFailedError.
	ErrRunFailed = errors.New("run failed")
	// ErrRunCancelled means the run was cancelled; the turn has no answer.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrRunTimeout means the run did not reach a terminal state within MaxPolls.
	ErrRunTimeout = errors.New("run timed out")
	// ErrNoToolCalls means the service asked for action without naming any tool call.
	ErrNoToolCalls = errors.New("run requires action but carries no tool calls")
)

// RunFailedError carries the error the service reported for a failed run.
type RunFailedError struct {
	RunID   agentsvc.RunID
	Code    string
	Message string
}

func (e *RunFailedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("run %s failed: %s (%s)", e.RunID, e.Message, e.Code)
	}
	return fmt.Sprintf("run %s failed: %s", e.RunID, e.Message)
}

func (e *RunFailedError) Is(target error) bool {
	return target == ErrRunFailed
}

func newRunFailedError(run *agentsvc.Run) *RunFailedError {
	err := &RunFailedError{RunID: run.ID, Message: "unknown error"}
	if run.LastError != nil {
		err.Code = run.LastError.Code
		if run.LastError.Message != "" {
			err.Message = run.LastError.Message
		}
	}
	return err
}
