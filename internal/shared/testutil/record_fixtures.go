package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Assignment describes one raw entry of the assignments collection.
type Assignment struct {
	Name        string
	ModuleCode  string
	ModuleName  string
	Deadline    time.Time
	Mark        *int
	HasFeedback bool
	Submitted   *time.Time
}

// Module describes one raw module registration.
type Module struct {
	AcademicYear string
	Code         string
	Name         string
	Mark         *int
}

// Member describes the raw member collection. Each entry of Details becomes one
// course detail; Modules are attached to the last one.
type Member struct {
	Details []CourseDetail
	Modules []Module
}

// CourseDetail is one studentCourseDetails entry.
type CourseDetail struct {
	BeginDate  time.Time
	YearLength int
}

// DataFiles holds the paths written by WriteDataFiles.
type DataFiles struct {
	Dir         string
	Assignments string
	Member      string
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Graded returns an assignment with feedback and the given mark.
func Graded(code, name string, deadline time.Time, mark int) Assignment {
	return Assignment{
		Name:        name,
		ModuleCode:  code,
		ModuleName:  code + " module",
		Deadline:    deadline,
		Mark:        IntPtr(mark),
		HasFeedback: true,
	}
}

// SampleAssignments spans two academic years of a course starting on
// 2020-09-01 and includes one excluded submission and one record awaiting
// feedback.
func SampleAssignments() []Assignment {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
	submitted := day(2020, time.October, 9)

	essay := Graded("CS101", "Essay", day(2020, time.October, 10), 64)
	essay.Submitted = &submitted

	return []Assignment{
		essay,
		Graded("CS102", "Lab 1", day(2020, time.November, 20), 71),
		Graded("CS101", "Exam", day(2021, time.May, 14), 58),
		{Name: "AEP submissions", ModuleCode: "AEP", Deadline: day(2020, time.December, 1), Mark: IntPtr(100), HasFeedback: true},
		{Name: "Pending", ModuleCode: "CS201", Deadline: day(2021, time.November, 1)},
		Graded("CS201", "Project", day(2021, time.December, 3), 82),
		Graded("CS202", "Quiz", day(2022, time.February, 17), 45),
	}
}

// SampleMember returns a three year course starting on 2020-09-01.
func SampleMember() Member {
	return Member{
		Details: []CourseDetail{{BeginDate: time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC), YearLength: 3}},
		Modules: []Module{
			{AcademicYear: "2020/21", Code: "CS101", Name: "Programming", Mark: IntPtr(61)},
			{AcademicYear: "2020/21", Code: "CS102", Name: "Systems", Mark: IntPtr(70)},
			{AcademicYear: "2021/22", Code: "CS201", Name: "Networks", Mark: IntPtr(78)},
			{AcademicYear: "2021/22", Code: "CS202", Name: "Databases"},
		},
	}
}

// AssignmentsJSON encodes assignments in the collection's wire format.
func AssignmentsJSON(t testing.TB, assignments []Assignment) []byte {
	t.Helper()

	entries := make([]map[string]any, 0, len(assignments))
	for _, a := range assignments {
		entry := map[string]any{
			"name":            a.Name,
			"hasFeedback":     a.HasFeedback,
			"studentDeadline": a.Deadline.Format(time.RFC3339),
			"module":          map[string]any{"code": a.ModuleCode, "name": a.ModuleName},
		}
		if a.Mark != nil {
			entry["feedback"] = map[string]any{"mark": *a.Mark}
		}
		if a.Submitted != nil {
			entry["submission"] = map[string]any{"submittedDate": a.Submitted.Format(time.RFC3339)}
		}
		entries = append(entries, entry)
	}

	data, err := json.Marshal(map[string]any{"historicAssignments": entries})
	require.NoError(t, err)
	return data
}

// MemberJSON encodes member in the collection's wire format.
func MemberJSON(t testing.TB, member Member) []byte {
	t.Helper()

	details := make([]map[string]any, 0, len(member.Details))
	for i, d := range member.Details {
		regs := []map[string]any{}
		if i == len(member.Details)-1 {
			for _, m := range member.Modules {
				reg := map[string]any{
					"academicYear": m.AcademicYear,
					"module":       map[string]any{"code": m.Code, "name": m.Name},
					"mark":         nil,
				}
				if m.Mark != nil {
					reg["mark"] = *m.Mark
				}
				regs = append(regs, reg)
			}
		}
		details = append(details, map[string]any{
			"beginDate":           d.BeginDate.Format(time.DateOnly),
			"courseYearLength":    d.YearLength,
			"moduleRegistrations": regs,
		})
	}

	data, err := json.Marshal(map[string]any{"member": map[string]any{"studentCourseDetails": details}})
	require.NoError(t, err)
	return data
}

// WriteDataFiles writes both collections into a temporary directory.
func WriteDataFiles(t testing.TB, assignments []Assignment, member Member) DataFiles {
	t.Helper()

	dir := t.TempDir()
	files := DataFiles{
		Dir:         dir,
		Assignments: filepath.Join(dir, "assignments.json"),
		Member:      filepath.Join(dir, "me.json"),
	}
	require.NoError(t, os.WriteFile(files.Assignments, AssignmentsJSON(t, assignments), 0o644))
	require.NoError(t, os.WriteFile(files.Member, MemberJSON(t, member), 0o644))
	return files
}

// WriteSampleData writes SampleAssignments and SampleMember.
func WriteSampleData(t testing.TB) DataFiles {
	t.Helper()
	return WriteDataFiles(t, SampleAssignments(), SampleMember())
}
