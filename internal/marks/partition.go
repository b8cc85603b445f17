package marks

import (
	"errors"
	"fmt"
	"time"
)

// DaysPerAcademicYear is the fixed window width used to split a course into years.
// Leap days are ignored; no coursework deadline falls close enough to a boundary
// for the drift to matter.
const DaysPerAcademicYear = 365

// ErrInvalidCourseLength is returned when a negative course length is supplied.
var ErrInvalidCourseLength = errors.New("course length must not be negative")

// YearBucket holds the values mapped from the records of one academic year.
type YearBucket[T any] struct {
	Label string `json:"label"`
	Items []T    `json:"items"`
}

// Breakpoints returns the courseYears+1 window boundaries starting at courseStart.
func Breakpoints(courseStart time.Time, courseYears int) []time.Time {
	start := civilDate(courseStart)
	points := make([]time.Time, 0, courseYears+1)
	for i := 0; i <= courseYears; i++ {
		points = append(points, start.AddDate(0, 0, i*DaysPerAcademicYear))
	}
	return points
}

// Partition splits records into academic-year buckets.
//
// Parameters:
//   - records: the records to split, in the order labels should be derived from
//   - courseStart: first day of the course
//   - courseYears: number of academic years the course spans
//   - dateOf: extracts the date a record is bucketed by
//   - mapFn: maps a record to the value stored in its bucket
//
// Returns: one bucket per year that received at least one record, in year order.
// A record is placed in year i when breakpoint[i] < date < breakpoint[i+1];
// records dated exactly on a breakpoint are in no bucket.
func Partition[R, T any](records []R, courseStart time.Time, courseYears int, dateOf func(R) time.Time, mapFn func(R) T) ([]YearBucket[T], error) {
	if courseYears < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCourseLength, courseYears)
	}

	points := Breakpoints(courseStart, courseYears)
	buckets := make([]YearBucket[T], 0, courseYears)

	for i := 1; i < len(points); i++ {
		lo, hi := points[i-1], points[i]

		var bucket YearBucket[T]
		for _, rec := range records {
			d := civilDate(dateOf(rec))
			if !d.After(lo) || !d.Before(hi) {
				continue
			}
			if len(bucket.Items) == 0 {
				bucket.Label = YearLabel(d.Year())
			}
			bucket.Items = append(bucket.Items, mapFn(rec))
		}

		if len(bucket.Items) > 0 {
			buckets = append(buckets, bucket)
		}
	}

	return buckets, nil
}

// Labels returns the bucket labels, index-aligned with buckets.
func Labels[T any](buckets []YearBucket[T]) []string {
	labels := make([]string, len(buckets))
	for i, b := range buckets {
		labels[i] = b.Label
	}
	return labels
}

// YearLabel formats the academic year starting in calendar year y, e.g. 2020 -> "2020/21".
func YearLabel(y int) string {
	return fmt.Sprintf("20%02d/%02d", mod100(y), mod100(y+1))
}

func mod100(y int) int {
	m := y % 100
	if m < 0 {
		m += 100
	}
	return m
}

// civilDate truncates t to midnight of its calendar day. The comparison is made
// in UTC so the result does not depend on the record's zone offset beyond its day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
