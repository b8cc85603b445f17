package charts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"markscope/internal/marks"
	"markscope/internal/records"
	"markscope/internal/snapshot"
)

// DefaultCurveSamples is how many points a Gaussian overlay is sampled at.
const DefaultCurveSamples = 200

// Options tune chart assembly.
type Options struct {
	CurveSamples int
}

// DefaultOptions returns the default assembly options
func DefaultOptions() Options {
	return Options{CurveSamples: DefaultCurveSamples}
}

// TrimObserver is told how many points each fit trimmed.
type TrimObserver func(ctx context.Context, variant string, dropped int)

// Option configures an Assembler.
type Option func(*Assembler)

// WithTracer traces each assembly.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Assembler) { a.tracer = tracer }
}

// WithTrimObserver registers fn to be called after every fit.
func WithTrimObserver(fn TrimObserver) Option {
	return func(a *Assembler) { a.onTrim = fn }
}

// Assembler turns a snapshot into charts. It holds no per-render state and is
// safe for concurrent use.
type Assembler struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
	onTrim TrimObserver
}

// NewAssembler creates an assembler
func NewAssembler(opts Options, logger *slog.Logger, options ...Option) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CurveSamples < 2 {
		opts.CurveSamples = DefaultCurveSamples
	}

	a := &Assembler{
		opts:   opts,
		logger: logger.With(slog.String("component", "chart_assembler")),
		tracer: noop.NewTracerProvider().Tracer("charts"),
		onTrim: func(context.Context, string, int) {},
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// Assemble builds the chart for page from snap.
//
// Returns: a chart with one panel per academic year that has data. A page with
// no data yields a chart with no panels, not an error. Fits that cannot be
// computed leave their panel without an overlay.
func (a *Assembler) Assemble(ctx context.Context, page Page, snap *snapshot.Snapshot) (chart *Chart, err error) {
	if !page.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPage, page)
	}
	if snap == nil {
		return nil, errors.New("nil snapshot")
	}

	ctx, span := a.tracer.Start(ctx, "chart.assemble",
		trace.WithAttributes(
			attribute.String("chart.page", page.String()),
			attribute.String("snapshot.digest", snap.Digest),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("chart.panels", len(chart.Panels)))
		}
		span.End()
	}()

	info := pageTable[page]
	chart = &Chart{
		Page:   page,
		Slug:   info.slug,
		Title:  info.title,
		XLabel: info.xLabel,
		YLabel: info.yLabel,
		XKind:  info.xKind,
		Panels: []Panel{},
	}

	switch page {
	case PageScatter:
		chart.Panels, err = a.scatterPanels(ctx, snap, deadlinePoint)
	case PageSubmissionDelta:
		chart.Panels, err = a.scatterPanels(ctx, snap, deltaPoint)
	case PageMarksHistogram:
		chart.Panels, err = a.assignmentHistogramPanels(ctx, snap)
	case PageModuleHistogram:
		chart.Panels = a.moduleHistogramPanels(ctx, snap)
	}
	if err != nil {
		return nil, err
	}

	a.logger.DebugContext(ctx, "chart assembled",
		slog.String("page", page.String()),
		slog.Int("panels", len(chart.Panels)))
	return chart, nil
}

// pointFunc maps a record to its plotted position; ok is false to skip it.
type pointFunc func(r records.AssignmentRecord) (Point, bool)

func deadlinePoint(r records.AssignmentRecord) (Point, bool) {
	return Point{X: float64(r.Deadline.Unix()), Y: float64(r.Mark)}, true
}

func deltaPoint(r records.AssignmentRecord) (Point, bool) {
	hours, ok := r.HoursBeforeDeadline()
	if !ok {
		return Point{}, false
	}
	return Point{X: hours, Y: float64(r.Mark)}, true
}

func (a *Assembler) partitionAssignments(ctx context.Context, snap *snapshot.Snapshot) ([]marks.YearBucket[records.AssignmentRecord], error) {
	buckets, err := marks.Partition(snap.Assignments, snap.CourseStart(), snap.CourseYears(),
		func(r records.AssignmentRecord) time.Time { return r.Deadline },
		func(r records.AssignmentRecord) records.AssignmentRecord { return r })
	if err != nil {
		return nil, fmt.Errorf("failed to partition assignments: %w", err)
	}
	a.logger.DebugContext(ctx, "assignments partitioned", slog.Any("years", marks.Labels(buckets)))
	return buckets, nil
}

func (a *Assembler) scatterPanels(ctx context.Context, snap *snapshot.Snapshot, position pointFunc) ([]Panel, error) {
	buckets, err := a.partitionAssignments(ctx, snap)
	if err != nil {
		return nil, err
	}

	panels := make([]Panel, 0, len(buckets))
	for _, bucket := range buckets {
		items := make([]records.AssignmentRecord, len(bucket.Items))
		copy(items, bucket.Items)
		sort.SliceStable(items, func(i, j int) bool {
			if !items[i].Deadline.Equal(items[j].Deadline) {
				return items[i].Deadline.Before(items[j].Deadline)
			}
			return items[i].Mark < items[j].Mark
		})

		panel := Panel{Label: bucket.Label}
		xs := make([]float64, 0, len(items))
		ys := make([]float64, 0, len(items))
		for _, r := range items {
			pt, ok := position(r)
			if !ok {
				continue
			}
			panel.Tooltips = append(panel.Tooltips, Tooltip{
				Index: len(panel.Points),
				Label: marks.PointLabel(r.ModuleCode, r.Name),
			})
			panel.Points = append(panel.Points, pt)
			xs = append(xs, pt.X)
			ys = append(ys, pt.Y)
		}
		if len(panel.Points) == 0 {
			continue
		}

		panel.Overlay = a.linearOverlay(ctx, bucket.Label, xs, ys)
		panels = append(panels, panel)
	}
	return panels, nil
}

func (a *Assembler) linearOverlay(ctx context.Context, label string, xs, ys []float64) *Overlay {
	fit, err := marks.FitLinear(xs, ys)
	if err != nil {
		if !errors.Is(err, marks.ErrTooFewPoints) {
			a.logger.WarnContext(ctx, "linear fit failed",
				slog.String("year", label),
				slog.String("error", err.Error()))
		}
		return nil
	}
	a.onTrim(ctx, string(OverlayLinear), len(fit.Dropped))

	xMin, xMax := xs[0], xs[0]
	for _, x := range xs {
		xMin = min(xMin, x)
		xMax = max(xMax, x)
	}
	lx, ly := fit.Line(xMin, xMax)
	return &Overlay{
		Kind:    OverlayLinear,
		X:       lx,
		Y:       ly,
		Dropped: fit.Dropped,
		Trimmed: len(fit.Dropped),
	}
}

// histogramGroup is one year of binned values with the names behind them.
type histogramGroup struct {
	label  string
	values []int
	names  marks.NameIndex
}

func (a *Assembler) assignmentHistogramPanels(ctx context.Context, snap *snapshot.Snapshot) ([]Panel, error) {
	buckets, err := a.partitionAssignments(ctx, snap)
	if err != nil {
		return nil, err
	}

	groups := make([]histogramGroup, 0, len(buckets))
	for _, bucket := range buckets {
		g := histogramGroup{label: bucket.Label, names: marks.NameIndex{}}
		for _, r := range bucket.Items {
			g.values = append(g.values, r.Mark)
			g.names.Add(r.Mark, r.Name)
		}
		groups = append(groups, g)
	}
	return a.histogramPanels(ctx, groups), nil
}

func (a *Assembler) moduleHistogramPanels(ctx context.Context, snap *snapshot.Snapshot) []Panel {
	var groups []histogramGroup
	index := map[string]int{}
	for _, m := range snap.Modules() {
		if !m.Graded() {
			continue
		}
		i, ok := index[m.AcademicYear]
		if !ok {
			i = len(groups)
			index[m.AcademicYear] = i
			groups = append(groups, histogramGroup{label: m.AcademicYear, names: marks.NameIndex{}})
		}
		name := m.Name
		if name == "" {
			name = m.Code
		}
		groups[i].values = append(groups[i].values, *m.Mark)
		groups[i].names.Add(*m.Mark, name)
	}
	return a.histogramPanels(ctx, groups)
}

// histogramPanels bins every group against edges derived from the marks of
// all groups, so the panels share an x-range.
func (a *Assembler) histogramPanels(ctx context.Context, groups []histogramGroup) []Panel {
	lo, hi, ok := markRange(groups)
	if !ok {
		return []Panel{}
	}
	edges, err := marks.HistogramEdges(lo, hi)
	if err != nil {
		// lo <= hi by construction
		a.logger.ErrorContext(ctx, "failed to generate bins", slog.String("error", err.Error()))
		return []Panel{}
	}

	panels := make([]Panel, 0, len(groups))
	for _, g := range groups {
		counts := marks.Histogram(edges, g.values)
		labels := marks.AggregateLabels(g.names, edges)

		panel := Panel{Label: g.label, Bars: make([]Bar, len(counts))}
		for i, c := range counts {
			panel.Bars[i] = Bar{Lo: edges[i], Hi: edges[i+1], Count: c}
			if labels[i] != "" {
				panel.Tooltips = append(panel.Tooltips, Tooltip{Index: i, Label: labels[i]})
			}
		}
		panel.Overlay = a.gaussianOverlay(ctx, g, float64(edges[0]), float64(edges[len(edges)-1]), panel.MaxBar())
		panels = append(panels, panel)
	}
	return panels
}

func (a *Assembler) gaussianOverlay(ctx context.Context, g histogramGroup, lo, hi float64, peak int) *Overlay {
	values := make([]float64, len(g.values))
	for i, v := range g.values {
		values[i] = float64(v)
	}

	fit, err := marks.FitGaussian(values)
	if err != nil {
		if !errors.Is(err, marks.ErrTooFewPoints) {
			a.logger.WarnContext(ctx, "gaussian fit failed",
				slog.String("year", g.label),
				slog.String("error", err.Error()))
		}
		return nil
	}
	a.onTrim(ctx, string(OverlayGaussian), len(fit.Dropped))

	xs, ys := fit.Curve(lo, hi, a.opts.CurveSamples, float64(peak))
	if xs == nil {
		return nil
	}
	return &Overlay{
		Kind:    OverlayGaussian,
		X:       xs,
		Y:       ys,
		Trimmed: len(fit.Dropped),
	}
}

func markRange(groups []histogramGroup) (lo, hi int, ok bool) {
	for _, g := range groups {
		for _, v := range g.values {
			if !ok {
				lo, hi, ok = v, v, true
				continue
			}
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	return lo, hi, ok
}
