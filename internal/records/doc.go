// Package records turns the two cached JSON collections, assignments and member,
// into validated domain records.
//
// Assignments named "AEP submissions" or still awaiting feedback are excluded
// before validation. Every other record must be complete; the first record that
// is not fails ingestion with a *MalformedRecordError that wraps
// ErrMalformedRecord.
package records
