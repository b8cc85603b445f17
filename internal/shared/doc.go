// Package shared holds code used across packages that belongs to no single layer.
//
// The testutil subpackage provides a buffered slog handler for log assertions and
// fixtures that write the assignments and member collections to a temporary
// directory:
//
//	func TestSomething(t *testing.T) {
//	    files := testutil.WriteSampleData(t)
//	    loader := snapshot.NewLoader(snapshot.Config{
//	        AssignmentsPath: files.Assignments,
//	        MemberPath:      files.Member,
//	    }, logger)
//	    ...
//	}
package shared
