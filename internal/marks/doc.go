// Package marks implements the analytical core behind the coursework charts.
//
// The package is pure computation over values handed to it by callers. It never
// reads files, talks to the network or logs; the chart assembler feeds it records
// taken from an immutable snapshot and turns its output into panels.
//
// # Core Components
//
//  1. Academic-year partitioning: records are split into ~365-day windows anchored
//     to the course start date. Records that fall exactly on a window boundary
//     belong to neither neighbour and empty windows are dropped.
//  2. Mark bins: histogram edges are chosen from the fixed 20-point reference
//     scale rather than spaced evenly, keeping at most one padding edge on each
//     side of the observed range.
//  3. Robust fits: a linear trend (mark against time) and a Gaussian (mark
//     distribution), each refit after iteratively dropping points whose
//     z-score reaches 2. The linear fit scores a mark against the line through
//     the other points; the Gaussian scores it against the kept sample.
//  4. Labels: bins and points are mapped back to the record names that fall
//     into them, for hover tooltips.
//
// # Architecture
//
//   - partition.go: YearBucket and Partition
//   - bins.go: reference scale and GenerateBins
//   - fit.go: trimming loop, FitLinear and FitGaussian
//   - labels.go: NameIndex, AggregateLabels and PointLabel
//
// # Usage Example
//
//	buckets, err := marks.Partition(records, start, 3,
//	    func(r records.AssignmentRecord) time.Time { return r.Deadline },
//	    func(r records.AssignmentRecord) records.AssignmentRecord { return r },
//	)
//	if err != nil {
//	    return err
//	}
//	for _, b := range buckets {
//	    edges, err := marks.GenerateBins(minMark, maxMark)
//	    ...
//	}
//
// # Termination of the fit loop
//
// Trimming is an explicit loop. It stops when no point reaches the threshold,
// when the sample is too small to score a value against at least two others
// (MinTrimSample), when a trim would leave fewer than MinFitPoints
// points, or after n iterations for n input points. A sample of identical values
// has zero spread and is never trimmed.
package marks
