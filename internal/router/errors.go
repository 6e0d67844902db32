package router

import (
	"errors"
	"fmt"
)

// Construction failures. These are fatal: the process must not start.
var (
	ErrNilMessenger = errors.New("router: messenger must not be nil")
	ErrNilRegistry  = errors.New("router: agent registry must not be nil")
)

// Request error codes carried in error replies.
const (
	CodeLookupFailure   = "lookup_failure"
	CodeUnknownType     = "unknown_agent_type"
	CodeDecisionFailure = "decision_failure"
	CodePolicyFailure   = "policy_failure"
)

// LookupError reports a request naming an agent id with no registration,
// instance, or session where one is required. It fails the single request;
// other agents' state is untouched.
type LookupError struct {
	AgentID int
	Missing string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("agent %d has no %s", e.AgentID, e.Missing)
}

// RequestError fails one request without tearing down the run loop. The
// dispatcher converts it into an error reply so the peer is not left
// waiting.
type RequestError struct {
	Code string
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func lookupFailure(agentID int, missing string) *RequestError {
	return &RequestError{
		Code: CodeLookupFailure,
		Err:  &LookupError{AgentID: agentID, Missing: missing},
	}
}
