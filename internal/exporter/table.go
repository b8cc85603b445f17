package exporter

import (
	"sort"
	"time"

	"markscope/internal/marks"
	"markscope/internal/records"
	"markscope/internal/snapshot"
)

// Table is a sheet of exported values with a header row. Cells keep their Go
// types so the workbook can store numbers and dates natively; CSV output
// formats them.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

var (
	assignmentHeaders = []string{"Academic year", "Module code", "Module name", "Assignment", "Deadline", "Submitted", "Hours before deadline", "Mark"}
	moduleHeaders     = []string{"Academic year", "Module code", "Module name", "Mark"}
)

// AssignmentTable lists every charted assignment in deadline order within its
// academic year. Records that fall in no year (on a boundary, or outside the
// course) are listed last with an empty year.
func AssignmentTable(snap *snapshot.Snapshot) (Table, error) {
	t := Table{Name: "Assignments", Headers: assignmentHeaders}

	all := make([]int, len(snap.Assignments))
	for i := range all {
		all[i] = i
	}
	deadline := func(i int) time.Time { return snap.Assignments[i].Deadline }

	buckets, err := marks.Partition(all, snap.CourseStart(), snap.CourseYears(), deadline, func(i int) int { return i })
	if err != nil {
		return Table{}, err
	}

	placed := make([]bool, len(snap.Assignments))
	for _, b := range buckets {
		for _, i := range byDeadline(b.Items, deadline) {
			t.Rows = append(t.Rows, assignmentRow(b.Label, snap.Assignments[i]))
			placed[i] = true
		}
	}
	for _, i := range byDeadline(all, deadline) {
		if !placed[i] {
			t.Rows = append(t.Rows, assignmentRow("", snap.Assignments[i]))
		}
	}
	return t, nil
}

func assignmentRow(year string, r records.AssignmentRecord) []interface{} {
	var submitted, hours interface{} = "", ""
	if r.SubmittedAt != nil {
		submitted = r.SubmittedAt.UTC()
	}
	if h, ok := r.HoursBeforeDeadline(); ok {
		hours = h
	}
	return []interface{}{year, r.ModuleCode, r.ModuleName, r.Name, r.Deadline.UTC(), submitted, hours, r.Mark}
}

// ModuleTable lists module registrations in registration order. Ungraded
// modules are included with an empty mark.
func ModuleTable(snap *snapshot.Snapshot) Table {
	t := Table{Name: "Modules", Headers: moduleHeaders}
	for _, m := range snap.Modules() {
		var mark interface{} = ""
		if m.Graded() {
			mark = *m.Mark
		}
		t.Rows = append(t.Rows, []interface{}{m.AcademicYear, m.Code, m.Name, mark})
	}
	return t
}

func byDeadline(idx []int, deadline func(int) time.Time) []int {
	out := make([]int, len(idx))
	copy(out, idx)
	sort.SliceStable(out, func(a, b int) bool { return deadline(out[a]).Before(deadline(out[b])) })
	return out
}
