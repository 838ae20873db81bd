// Package orchestrator drives a single conversational turn against the agent service.
//
// A turn appends the user's message to the thread, creates a run and then follows the
// run through its lifecycle until it settles in a terminal state.
//
// # Run lifecycle
//
// The service reports one of the following states:
//
//   - queued, in_progress, cancelling: the orchestrator waits one poll interval and
//     fetches the run again. Polling is read-only; it never writes to the thread.
//   - requires_action: the agent asked for tools. Every pending call is answered by the
//     ToolInvoker and all outputs are submitted in a single batch. Polling then
//     resumes; the snapshot returned by the submission is not trusted.
//   - completed: the newest assistant message written during the turn is read and its
//     last text part becomes the answer.
//   - failed: a *RunFailedError carrying the service's error is returned.
//   - cancelled: ErrRunCancelled is returned.
//
// # Bounds
//
// Options.MaxPolls limits how often a turn may fetch the run. Exceeding it returns
// ErrRunTimeout. Cancelling the context stops the loop between polls.
//
// Failed, cancelled and timed out runs only end the current turn; the thread stays
// usable for the next one (see IsTurnAbort).
package orchestrator
