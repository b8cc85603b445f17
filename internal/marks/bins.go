package marks

import (
	"errors"
	"fmt"
)

// referenceScale is the banded marking scale histogram edges are drawn from.
var referenceScale = [...]int{0, 12, 25, 32, 38, 42, 45, 48, 52, 55, 58, 62, 65, 68, 74, 78, 82, 88, 94, 100}

// ErrInvalidMarkRange is returned when the minimum mark exceeds the maximum.
var ErrInvalidMarkRange = errors.New("minimum mark exceeds maximum mark")

// GenerateBins selects the contiguous window of the reference scale covering
// [minMark, maxMark], padded by at most one edge on each side.
//
// A scale point P[i] is kept unless the bin ending at it lies wholly below the
// range (maxMark <= P[i-1]) or the bin starting at it lies wholly above it
// (minMark >= P[i+1]).
func GenerateBins(minMark, maxMark int) ([]int, error) {
	if minMark > maxMark {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidMarkRange, minMark, maxMark)
	}

	last := len(referenceScale) - 1
	edges := make([]int, 0, len(referenceScale))
	for i, p := range referenceScale {
		if i > 0 && maxMark <= referenceScale[i-1] {
			continue
		}
		if i < last && minMark >= referenceScale[i+1] {
			continue
		}
		edges = append(edges, p)
	}
	return edges, nil
}

// HistogramEdges is GenerateBins for plotting: when the observed range collapses
// onto a single scale point it adds the neighbouring point so at least one bin
// exists.
func HistogramEdges(minMark, maxMark int) ([]int, error) {
	edges, err := GenerateBins(minMark, maxMark)
	if err != nil || len(edges) >= 2 {
		return edges, err
	}

	i := indexOf(edges[0])
	if i < len(referenceScale)-1 {
		return []int{edges[0], referenceScale[i+1]}, nil
	}
	return []int{referenceScale[i-1], edges[0]}, nil
}

func indexOf(p int) int {
	for i, v := range referenceScale {
		if v == p {
			return i
		}
	}
	return -1
}

// BinIndex returns the index of the bin containing v, treating the last bin as
// closed at the top. It returns -1 when v is outside the edges.
func BinIndex(edges []int, v int) int {
	n := len(edges) - 1
	for i := 0; i < n; i++ {
		if v >= edges[i] && (v < edges[i+1] || (i == n-1 && v == edges[i+1])) {
			return i
		}
	}
	return -1
}

// Histogram counts values into the bins described by edges.
func Histogram(edges []int, values []int) []int {
	if len(edges) < 2 {
		return nil
	}
	counts := make([]int, len(edges)-1)
	for _, v := range values {
		if i := BinIndex(edges, v); i >= 0 {
			counts[i]++
		}
	}
	return counts
}
