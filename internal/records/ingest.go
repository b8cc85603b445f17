package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	sourceAssignments = "assignments"
	sourceMember      = "member"
)

// Raw shapes of the two collections. Only included records are validated.
type (
	assignmentsDoc struct {
		HistoricAssignments []assignmentDTO `json:"historicAssignments"`
	}

	assignmentDTO struct {
		Name            string         `json:"name" validate:"required"`
		HasFeedback     bool           `json:"hasFeedback"`
		StudentDeadline string         `json:"studentDeadline" validate:"required"`
		Module          moduleDTO      `json:"module"`
		Feedback        *feedbackDTO   `json:"feedback" validate:"required"`
		Submission      *submissionDTO `json:"submission"`
	}

	moduleDTO struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}

	feedbackDTO struct {
		Mark *float64 `json:"mark" validate:"required,min=0,max=100"`
	}

	submissionDTO struct {
		SubmittedDate string `json:"submittedDate"`
	}

	memberDoc struct {
		Member *memberDTO `json:"member"`
	}

	memberDTO struct {
		StudentCourseDetails []courseDetailDTO `json:"studentCourseDetails"`
	}

	courseDetailDTO struct {
		BeginDate           string            `json:"beginDate" validate:"required,datetime=2006-01-02"`
		CourseYearLength    int               `json:"courseYearLength" validate:"min=0"`
		ModuleRegistrations []registrationDTO `json:"moduleRegistrations"`
	}

	registrationDTO struct {
		AcademicYear string    `json:"academicYear"`
		Module       moduleDTO `json:"module"`
		Mark         *float64  `json:"mark" validate:"omitempty,min=0,max=100"`
	}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report JSON field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// timestampLayouts are tried in order. Zone-less values are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// ParseAssignments decodes and validates the assignments collection.
//
// Excluded assignments are counted but not validated. Every included record must
// have a name, a parsable deadline and a whole-number mark in 0..100; the first
// violation is returned as a *MalformedRecordError.
func ParseAssignments(r io.Reader) (Assignments, error) {
	var doc assignmentsDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Assignments{}, fmt.Errorf("failed to decode assignments: %w", err)
	}

	out := Assignments{Records: make([]AssignmentRecord, 0, len(doc.HistoricAssignments))}
	for i, dto := range doc.HistoricAssignments {
		if Excluded(dto.Name, dto.HasFeedback) {
			out.Excluded++
			continue
		}

		rec, err := dto.toRecord(i)
		if err != nil {
			return Assignments{}, err
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func (dto assignmentDTO) toRecord(index int) (AssignmentRecord, error) {
	if err := validate.Struct(dto); err != nil {
		return AssignmentRecord{}, fromValidation(sourceAssignments, index, err)
	}

	deadline, err := parseTimestamp(dto.StudentDeadline)
	if err != nil {
		return AssignmentRecord{}, malformed(sourceAssignments, index, "studentDeadline", err.Error())
	}

	mark, err := wholeMark(*dto.Feedback.Mark)
	if err != nil {
		return AssignmentRecord{}, malformed(sourceAssignments, index, "feedback.mark", err.Error())
	}

	rec := AssignmentRecord{
		Name:       dto.Name,
		ModuleCode: dto.Module.Code,
		ModuleName: dto.Module.Name,
		Deadline:   deadline,
		Mark:       mark,
	}
	if dto.Submission != nil && dto.Submission.SubmittedDate != "" {
		submitted, err := parseTimestamp(dto.Submission.SubmittedDate)
		if err != nil {
			return AssignmentRecord{}, malformed(sourceAssignments, index, "submission.submittedDate", err.Error())
		}
		rec.SubmittedAt = &submitted
	}
	return rec, nil
}

// ParseCourse decodes and validates the member collection.
//
// The course starts on the first course detail's begin date and lasts as many
// years as the last detail says. Module registrations are concatenated across
// details; Index in a module error counts across that concatenation.
func ParseCourse(r io.Reader) (Course, error) {
	var doc memberDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Course{}, fmt.Errorf("failed to decode member: %w", err)
	}
	if doc.Member == nil || len(doc.Member.StudentCourseDetails) == 0 {
		return Course{}, malformed(sourceMember, 0, "studentCourseDetails", "at least one course detail is required")
	}

	details := doc.Member.StudentCourseDetails
	for i, d := range details {
		if err := validate.Struct(d); err != nil {
			return Course{}, fromValidation(sourceMember, i, err)
		}
	}

	start, err := time.Parse(time.DateOnly, details[0].BeginDate)
	if err != nil {
		return Course{}, malformed(sourceMember, 0, "beginDate", err.Error())
	}

	course := Course{
		Start: start,
		Years: details[len(details)-1].CourseYearLength,
	}

	index := 0
	for _, d := range details {
		for _, reg := range d.ModuleRegistrations {
			if err := validate.Struct(reg); err != nil {
				return Course{}, fromValidation(sourceMember, index, err)
			}
			mod := ModuleRecord{
				AcademicYear: reg.AcademicYear,
				Code:         reg.Module.Code,
				Name:         reg.Module.Name,
			}
			if reg.Mark != nil {
				mark, err := wholeMark(*reg.Mark)
				if err != nil {
					return Course{}, malformed(sourceMember, index, "mark", err.Error())
				}
				mod.Mark = &mark
			}
			course.Modules = append(course.Modules, mod)
			index++
		}
	}
	return course, nil
}

func wholeMark(v float64) (int, error) {
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("mark %v is not a whole number", v)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("mark %v is outside 0..100", v)
	}
	return int(v), nil
}

// fromValidation converts the first validator failure into a MalformedRecordError.
func fromValidation(source string, index int, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%s record %d: %w", source, index, err)
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return malformed(source, index, field, describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "datetime":
		return fmt.Sprintf("must be a %s date, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
