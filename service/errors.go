package services

import "fmt"

// ConfigurationError reports a request type whose step cannot produce any
// candidate approver. It is fatal to step activation and must reach an
// operator, not the end user.
type ConfigurationError struct {
	StepIndex int
	Detail    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("workflow configuration error at step %d: %s", e.StepIndex, e.Detail)
}

// AuthorizationError reports a decision attempt by an actor the predicate
// (including the delegation layer) does not permit.
type AuthorizationError struct {
	ActorID string
	Detail  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s is not permitted: %s", e.ActorID, e.Detail)
}

// StateConflictError reports a transition attempted against a record that is
// no longer in the expected state, e.g. a decision on an already resolved
// action. The client should refresh.
type StateConflictError struct {
	Detail string
}

func (e *StateConflictError) Error() string {
	return "already resolved: " + e.Detail
}

// ValidationError reports a malformed request payload.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Detail
}
