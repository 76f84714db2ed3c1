package frame

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrSchemaMismatch is matched by every *SchemaMismatchError.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrCoercion is matched by every *CoercionError.
	ErrCoercion = errors.New("lossy coercion")
)

// ViolationKind classifies a schema violation.
type ViolationKind int

const (
	MissingField ViolationKind = iota
	WrongType
	NullValue
	OutOfDomain
	NotIndex
	UnexpectedField
)

func (k ViolationKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case WrongType:
		return "wrong type"
	case NullValue:
		return "null value"
	case OutOfDomain:
		return "out of domain"
	case NotIndex:
		return "not an index level"
	case UnexpectedField:
		return "unexpected field"
	}
	return fmt.Sprintf("ViolationKind(%d)", int(k))
}

// Violation describes one offending field. Row is -1 when the violation is
// not tied to a cell.
type Violation struct {
	Field  string
	Kind   ViolationKind
	Row    int
	Detail string
}

func (v Violation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q", v.Kind, v.Field)
	if v.Row >= 0 {
		fmt.Fprintf(&b, " at row %d", v.Row)
	}
	if v.Detail != "" {
		fmt.Fprintf(&b, ": %s", v.Detail)
	}
	return b.String()
}

// SchemaMismatchError lists every violation found while validating a frame.
type SchemaMismatchError struct {
	Violations []Violation
}

func (e *SchemaMismatchError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("schema mismatch (%d violations): %s", len(e.Violations), strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrSchemaMismatch) succeed.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Fields returns the distinct offending field names in report order.
func (e *SchemaMismatchError) Fields() []string {
	var names []string
	seen := map[string]bool{}
	for _, v := range e.Violations {
		if !seen[v.Field] {
			seen[v.Field] = true
			names = append(names, v.Field)
		}
	}
	return names
}

// CoercionError reports a conversion that would lose information.
type CoercionError struct {
	Field  string
	Row    int
	Value  cty.Value
	Target Kind
	Err    error
}

func (e *CoercionError) Error() string {
	msg := fmt.Sprintf("cannot coerce %s in field %q at row %d to %s", FormatValue(e.Value), e.Field, e.Row, e.Target)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrCoercion) succeed.
func (e *CoercionError) Is(target error) bool {
	return target == ErrCoercion
}

func (e *CoercionError) Unwrap() error { return e.Err }
