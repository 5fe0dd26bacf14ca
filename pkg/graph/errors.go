package graph

import "fmt"

// CompileErrorCode identifies the class of definition defect Compile found.
type CompileErrorCode string

const (
	ErrDuplicateActivity  CompileErrorCode = "duplicate_activity"
	ErrDanglingConnection CompileErrorCode = "dangling_connection"
	ErrUnknownKind        CompileErrorCode = "unknown_kind"
	ErrMissingStart       CompileErrorCode = "missing_start"
	ErrMissingDefault     CompileErrorCode = "missing_default"
	ErrBadCondition       CompileErrorCode = "bad_condition"
	ErrUnguardedCycle     CompileErrorCode = "unguarded_cycle"
)

// CompileError is a structural defect in a GraphDefinition. Compile never
// returns a partially usable graph alongside one.
type CompileError struct {
	Code       CompileErrorCode
	ActivityID string
	Detail     string
}

func (e *CompileError) Error() string {
	if e.ActivityID != "" {
		return fmt.Sprintf("graph compile: %s at %q: %s", e.Code, e.ActivityID, e.Detail)
	}
	return fmt.Sprintf("graph compile: %s: %s", e.Code, e.Detail)
}

// RoutingError reports a resolver that could not choose a successor at
// runtime. Compile-time default-branch checks make this unreachable for
// well-formed graphs.
type RoutingError struct {
	ActivityID string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("graph routing: no branch matched at %q", e.ActivityID)
}
