package subtyping

import (
	"fmt"

	"github.com/tanema/steep/src/types"
)

type (
	// Relation is an ordered pair of types whose intended meaning is Sub <: Sup.
	Relation struct {
		Sub types.Type
		Sup types.Type
	}

	// FailureReason is an enum classifying why a relation does not hold.
	FailureReason int

	// Failure describes the first relation in a check that could not be
	// satisfied.
	Failure struct {
		Reason FailureReason
		Rel    Relation
		Member string
	}

	// Result is the outcome of a subtyping check: the trace of relations visited
	// and, on failure, the reason.
	Result struct {
		Trace   []Relation
		Failure *Failure
	}
)

const (
	// TypeMismatch is the general fallback reason.
	TypeMismatch FailureReason = iota
	// MissingMethod means the subtype lacks a method the supertype requires.
	MissingMethod
	// MissingKey means a record or keyword argument is absent on the subtype
	// side.
	MissingKey
	// ParameterMismatch means procedure or tuple shapes disagree.
	ParameterMismatch
	// UnsatisfiableBound means recorded bounds of an unknown cannot be
	// reconciled.
	UnsatisfiableBound
)

func (reason FailureReason) String() string {
	switch reason {
	case MissingMethod:
		return "missing_method"
	case MissingKey:
		return "missing_key"
	case ParameterMismatch:
		return "parameter_mismatch"
	case UnsatisfiableBound:
		return "unsatisfiable_bound"
	default:
		return "type_mismatch"
	}
}

func (rel Relation) String() string {
	return fmt.Sprintf("%v <: %v", rel.Sub, rel.Sup)
}

// Success reports whether the relation held.
func (r *Result) Success() bool { return r.Failure == nil }

// Message formats the failure for a diagnostic. Empty on success.
func (r *Result) Message() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Message()
}

// Message formats the failure for a diagnostic.
func (f *Failure) Message() string {
	switch f.Reason {
	case MissingMethod:
		return fmt.Sprintf("cannot find method %v on %v for %v", f.Member, f.Rel.Sub, f.Rel.Sup)
	case MissingKey:
		return fmt.Sprintf("missing key %v in %v", f.Member, f.Rel)
	case ParameterMismatch:
		return fmt.Sprintf("incompatible parameters in %v", f.Rel)
	case UnsatisfiableBound:
		return fmt.Sprintf("unsatisfiable bound for %v in %v", f.Member, f.Rel)
	default:
		return fmt.Sprintf("%v is not a subtype of %v", f.Rel.Sub, f.Rel.Sup)
	}
}
