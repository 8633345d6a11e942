package model

import (
	"fmt"
	"strings"
)

const (
	ErrNonFinite       = "E_NON_FINITE"
	ErrOutOfRange      = "E_OUT_OF_RANGE"
	ErrUnknownPart     = "E_UNKNOWN_PART"
	ErrDuplicatePart   = "E_DUPLICATE_PART"
	ErrDependencyCycle = "E_DEPENDENCY_CYCLE"
	ErrUnknownCategory = "E_UNKNOWN_CATEGORY"
)

// DataError reports corrupt plant data. These are upstream bugs: the same input fails the
// same way every time.
type DataError struct {
	Code       string
	Plant      string
	Part       string
	Field      string
	Detail     string
	Suggestion string
}

func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Plant != "" {
		fmt.Fprintf(&b, " plant=%s", e.Plant)
	}
	if e.Part != "" {
		fmt.Fprintf(&b, " part=%s", e.Part)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	return b.String()
}

// Is matches on Code so callers can test with errors.Is(err, &DataError{Code: ...}).
func (e *DataError) Is(target error) bool {
	t, ok := target.(*DataError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}
