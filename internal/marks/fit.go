package marks

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

const (
	// ZThreshold is the absolute z-score at or above which a point is trimmed.
	ZThreshold = 2.0
	// MinFitPoints is the smallest sample a fit is computed from.
	MinFitPoints = 2
	// MinTrimSample is the smallest sample trimming is attempted on. A linear
	// fit needs two other points to predict the one being scored.
	MinTrimSample = 3
	// MinMarkSpread floors the spread a linear prediction error is divided by,
	// in marks. Two close marks would otherwise make any third one an outlier.
	MinMarkSpread = 5.0

	// spreadEpsilon treats a standard deviation this small (relative to the
	// values' magnitude) as zero.
	spreadEpsilon = 1e-9
)

// ErrTooFewPoints is returned when a fit has fewer than MinFitPoints values.
var ErrTooFewPoints = errors.New("too few points to fit")

// Trim describes which input indices survived outlier trimming.
type Trim struct {
	Kept       []int `json:"kept"`
	Dropped    []int `json:"dropped"`
	Iterations int   `json:"iterations"`
}

// ZScores standardises each value against the mean and population standard
// deviation of the whole sample. A sample without spread scores 0 throughout.
func ZScores(values []float64) []float64 {
	z := make([]float64, len(values))
	if len(values) == 0 {
		return z
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return z
	}
	sd, err := stats.StandardDeviationPopulation(values)
	if err != nil || isZeroSpread(sd, mean) {
		return z
	}
	for i, v := range values {
		z[i] = (v - mean) / sd
	}
	return z
}

// PredictionZScores scores each indexed point by how far its y lies from what
// the other indexed points predict for it, in units of the others' y spread
// (never less than MinMarkSpread).
//
// The prediction is the others' least squares line at x when x lies within
// the others' x range, and the others' mean y otherwise. A line through two
// close points is not extrapolated.
func PredictionZScores(xs, ys []float64, idx []int) ([]float64, error) {
	z := make([]float64, len(idx))
	if len(idx) < MinTrimSample {
		return z, nil
	}

	others := make([]int, 0, len(idx)-1)
	oy := make([]float64, 0, len(idx)-1)
	for j, i := range idx {
		others = append(others[:0], idx[:j]...)
		others = append(others, idx[j+1:]...)

		oy = oy[:0]
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, o := range others {
			oy = append(oy, ys[o])
			lo = math.Min(lo, xs[o])
			hi = math.Max(hi, xs[o])
		}

		mean, err := stats.Mean(oy)
		if err != nil {
			return nil, err
		}
		sd, err := stats.StandardDeviationPopulation(oy)
		if err != nil {
			return nil, err
		}

		predicted := mean
		if xs[i] >= lo && xs[i] <= hi {
			slope, intercept, err := ols(xs, ys, others)
			if err != nil {
				return nil, err
			}
			predicted = intercept + slope*xs[i]
		}
		z[j] = (ys[i] - predicted) / math.Max(sd, MinMarkSpread)
	}
	return z, nil
}

func isZeroSpread(sd, mean float64) bool {
	return sd <= spreadEpsilon*math.Max(1, math.Abs(mean))
}

// trim runs the iterative outlier loop over n points. score returns a z-score
// for each currently kept index.
func trim(n int, score func(kept []int) ([]float64, error)) (Trim, error) {
	kept := make([]int, n)
	for i := range kept {
		kept[i] = i
	}

	var t Trim
	for t.Iterations < n && len(kept) >= MinTrimSample {
		z, err := score(kept)
		if err != nil {
			return t, err
		}

		survivors := make([]int, 0, len(kept))
		var outliers []int
		for j, idx := range kept {
			if math.Abs(z[j]) >= ZThreshold {
				outliers = append(outliers, idx)
			} else {
				survivors = append(survivors, idx)
			}
		}

		if len(outliers) == 0 || len(survivors) < MinFitPoints {
			break
		}

		t.Iterations++
		t.Dropped = append(t.Dropped, outliers...)
		kept = survivors
	}

	t.Kept = kept
	sort.Ints(t.Dropped)
	return t, nil
}

// LinearFit is an ordinary least squares line fitted after trimming.
type LinearFit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Trim
}

// At evaluates the line at x.
func (f LinearFit) At(x float64) float64 {
	return f.Intercept + f.Slope*x
}

// Line evaluates the fit at both ends of [xMin, xMax].
func (f LinearFit) Line(xMin, xMax float64) ([]float64, []float64) {
	return []float64{xMin, xMax}, []float64{f.At(xMin), f.At(xMax)}
}

// FitLinear fits y against x, iteratively trimming points whose y is far from
// what the remaining points predict for it (see PredictionZScores).
//
// Parameters:
//   - xs: independent values, e.g. deadlines as seconds since the epoch
//   - ys: dependent values, e.g. marks
//
// Returns: the fit computed on the surviving points. The caller still plots
// every input point; Dropped only records which were left out of the line.
func FitLinear(xs, ys []float64) (LinearFit, error) {
	if len(xs) != len(ys) {
		return LinearFit{}, fmt.Errorf("mismatched lengths: %d x values, %d y values", len(xs), len(ys))
	}
	if len(xs) < MinFitPoints {
		return LinearFit{}, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(xs))
	}

	t, err := trim(len(xs), func(kept []int) ([]float64, error) {
		return PredictionZScores(xs, ys, kept)
	})
	if err != nil {
		return LinearFit{}, err
	}

	slope, intercept, err := ols(xs, ys, t.Kept)
	if err != nil {
		return LinearFit{}, err
	}
	return LinearFit{Slope: slope, Intercept: intercept, Trim: t}, nil
}

// ols fits y = intercept + slope*x over the indexed points. x is centred first;
// epoch seconds squared would otherwise swamp the variance.
func ols(xs, ys []float64, idx []int) (float64, float64, error) {
	if len(idx) < MinFitPoints {
		return 0, 0, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(idx))
	}

	x := make([]float64, len(idx))
	y := make([]float64, len(idx))
	for j, i := range idx {
		x[j] = xs[i]
		y[j] = ys[i]
	}

	meanX, err := stats.Mean(x)
	if err != nil {
		return 0, 0, err
	}
	meanY, err := stats.Mean(y)
	if err != nil {
		return 0, 0, err
	}
	for j := range x {
		x[j] -= meanX
	}

	varX, err := stats.SampleVariance(x)
	if err != nil {
		return 0, 0, err
	}
	if varX == 0 {
		return 0, meanY, nil
	}
	cov, err := stats.Covariance(x, y)
	if err != nil {
		return 0, 0, err
	}

	slope := cov / varX
	return slope, meanY - slope*meanX, nil
}

// GaussianFit is a normal distribution fitted to trimmed values.
type GaussianFit struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Trim
}

// Degenerate reports whether the fit has no spread and cannot be drawn.
func (g GaussianFit) Degenerate() bool {
	return isZeroSpread(g.StdDev, g.Mean)
}

// PDF is the normal probability density at x.
func (g GaussianFit) PDF(x float64) float64 {
	if g.Degenerate() {
		return 0
	}
	d := (x - g.Mean) / g.StdDev
	return math.Exp(-0.5*d*d) / (g.StdDev * math.Sqrt(2*math.Pi))
}

// Curve samples the density across [lo, hi] and rescales it so its highest
// sample equals peak, the tallest bar of the panel it overlays. It returns nil
// slices when there is nothing sensible to draw.
func (g GaussianFit) Curve(lo, hi float64, samples int, peak float64) ([]float64, []float64) {
	if g.Degenerate() || samples < 2 || hi <= lo || peak <= 0 {
		return nil, nil
	}

	xs := make([]float64, samples)
	ys := make([]float64, samples)
	step := (hi - lo) / float64(samples-1)
	for i := range xs {
		xs[i] = lo + float64(i)*step
		ys[i] = g.PDF(xs[i])
	}

	top, err := stats.Max(ys)
	if err != nil || top == 0 {
		return nil, nil
	}
	scale := peak / top
	for i := range ys {
		ys[i] *= scale
	}
	return xs, ys
}

// FitGaussian trims raw values by their z-score against the kept sample and
// fits mean and population standard deviation to the survivors.
func FitGaussian(values []float64) (GaussianFit, error) {
	if len(values) == 0 {
		return GaussianFit{}, fmt.Errorf("%w: got 0", ErrTooFewPoints)
	}

	t, err := trim(len(values), func(kept []int) ([]float64, error) {
		out := make([]float64, len(kept))
		for j, idx := range kept {
			out[j] = values[idx]
		}
		return ZScores(out), nil
	})
	if err != nil {
		return GaussianFit{}, err
	}

	kept := make([]float64, len(t.Kept))
	for j, idx := range t.Kept {
		kept[j] = values[idx]
	}
	mean, err := stats.Mean(kept)
	if err != nil {
		return GaussianFit{}, err
	}
	sd, err := stats.StandardDeviationPopulation(kept)
	if err != nil {
		return GaussianFit{}, err
	}
	return GaussianFit{Mean: mean, StdDev: sd, Trim: t}, nil
}
