// Package snapshot owns the load-once lifecycle of the input collections.
//
// A Loader reads assignments.json and me.json in parallel, validates them with
// package records and publishes the result as an immutable *Snapshot behind an
// atomic pointer. Renders read whatever snapshot is current; Reload swaps in a
// new one without blocking them.
package snapshot
