package records

import (
	"strings"
	"time"
)

// ExcludedNameMarker marks administrative submissions that are never charted.
const ExcludedNameMarker = "AEP submissions"

// AssignmentRecord is one graded piece of coursework.
type AssignmentRecord struct {
	Name        string     `json:"name"`
	ModuleCode  string     `json:"module_code"`
	ModuleName  string     `json:"module_name"`
	Deadline    time.Time  `json:"deadline"`
	Mark        int        `json:"mark"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// HoursBeforeDeadline returns how many hours before the deadline the work was
// submitted. Late submissions are negative. ok is false when no submission
// time was recorded.
func (a AssignmentRecord) HoursBeforeDeadline() (hours float64, ok bool) {
	if a.SubmittedAt == nil {
		return 0, false
	}
	return a.Deadline.Sub(*a.SubmittedAt).Hours(), true
}

// ModuleRecord is a module registration with its final mark, if one was awarded.
type ModuleRecord struct {
	AcademicYear string `json:"academic_year"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Mark         *int   `json:"mark,omitempty"`
}

// Graded reports whether the module has a final mark.
func (m ModuleRecord) Graded() bool {
	return m.Mark != nil
}

// Course holds the course-level facts from the member collection.
type Course struct {
	Start   time.Time      `json:"start"`
	Years   int            `json:"years"`
	Modules []ModuleRecord `json:"modules"`
}

// Assignments is the validated content of the assignments collection.
type Assignments struct {
	Records  []AssignmentRecord `json:"records"`
	Excluded int                `json:"excluded"`
}

// Excluded reports whether a raw assignment is left out of every chart: it is
// either an administrative submission or has no feedback yet.
func Excluded(name string, hasFeedback bool) bool {
	return strings.Contains(name, ExcludedNameMarker) || !hasFeedback
}
