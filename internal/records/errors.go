package records

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is wrapped by every MalformedRecordError.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError identifies the record and field that failed validation.
type MalformedRecordError struct {
	Source string // "assignments" or "member"
	Index  int
	Field  string
	Reason string
}

// Error implements the error interface
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s record %d: field %s: %s", e.Source, e.Index, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedRecord.
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

func malformed(source string, index int, field, reason string) *MalformedRecordError {
	return &MalformedRecordError{Source: source, Index: index, Field: field, Reason: reason}
}
