// Package cerrors defines the error taxonomy exposed by the circles-go core
// (spec §7). Every component returns one of these values (or wraps an
// external cause in ExternalServiceError) rather than inventing its own
// error type, so callers can type-switch once regardless of which component
// failed.
package cerrors

import "fmt"

// Imbalanced reports that a flow matrix's terminal edges did not sum to the
// expected value (§4.2 step 4).
type Imbalanced struct {
	TerminalSum any
	Expected    any
}

func (e *Imbalanced) Error() string {
	return fmt.Sprintf("flow matrix imbalanced: terminal sum %v != expected %v", e.TerminalSum, e.Expected)
}

// CapacityExceeded reports that a path referenced more than 65535 distinct
// vertices (§4.1, §4.2 step 1).
type CapacityExceeded struct {
	Count int
}

func (e *CapacityExceeded) Error() string {
	return fmt.Sprintf("flow matrix capacity exceeded: %d distinct vertices (max 65535)", e.Count)
}

// NoPath reports that the pathfinder returned an empty transfer list.
type NoPath struct {
	From, To fmt.Stringer
}

func (e *NoPath) Error() string {
	return fmt.Sprintf("no path found from %s to %s", e.From, e.To)
}

// InsufficientFlow reports that the reported max flow fell short of the
// (quantized) requested amount.
type InsufficientFlow struct {
	Available any
	Requested any
}

func (e *InsufficientFlow) Error() string {
	return fmt.Sprintf("insufficient flow: available %v, requested %v", e.Available, e.Requested)
}

// WrappedTokensNotAllowed reports that a path touched wrapper tokens while
// the caller's policy forbade it (§4.4 step 3).
type WrappedTokensNotAllowed struct{}

func (e *WrappedTokensNotAllowed) Error() string {
	return "wrapped tokens present in path but not allowed by policy"
}

// AmountOutOfDomain reports that a remote-reported amount exceeded the
// width the receiving component can represent (§4.5, §4.2 step 4 widening
// rule).
type AmountOutOfDomain struct {
	Domain string // e.g. "192-bit"
	Value  string // decimal string of the offending value
}

func (e *AmountOutOfDomain) Error() string {
	return fmt.Sprintf("amount %s exceeds %s domain", e.Value, e.Domain)
}

// ExternalServiceError wraps a transport/decoding failure surfaced by one of
// the external collaborators (pathfinder, token-info, balance). It is never
// retried internally (§7).
type ExternalServiceError struct {
	Source string // "pathfinder" | "token-info" | "balance"
	Detail string
	Cause  error
}

func (e *ExternalServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Detail)
}

func (e *ExternalServiceError) Unwrap() error { return e.Cause }
