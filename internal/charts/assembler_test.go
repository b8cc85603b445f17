package charts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markscope/internal/marks"
	"markscope/internal/records"
	"markscope/internal/shared/testutil"
	"markscope/internal/snapshot"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func sampleSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	files := testutil.WriteSampleData(t)
	logger, _ := testutil.NewTestLogger(t)
	snap, err := snapshot.NewLoader(snapshot.Config{
		AssignmentsPath: files.Assignments,
		MemberPath:      files.Member,
	}, logger).Get(context.Background())
	require.NoError(t, err)
	return snap
}

func newTestAssembler(t *testing.T, opts ...Option) *Assembler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewAssembler(DefaultOptions(), logger, opts...)
}

func panelLabels(c *Chart) []string {
	labels := make([]string, len(c.Panels))
	for i, p := range c.Panels {
		labels[i] = p.Label
	}
	return labels
}

func TestAssemble_Scatter(t *testing.T) {
	chart, err := newTestAssembler(t).Assemble(context.Background(), PageScatter, sampleSnapshot(t))
	require.NoError(t, err)

	assert.Equal(t, "Assignment marks over time", chart.Title)
	assert.Equal(t, XKindTime, chart.XKind)
	require.Equal(t, []string{"2020/21", "2021/22"}, panelLabels(chart))

	first := chart.Panels[0]
	require.Len(t, first.Points, 3)
	assert.Equal(t, float64(date(2020, time.October, 10).Unix()), first.Points[0].X)
	assert.Equal(t, []float64{64, 71, 58}, []float64{first.Points[0].Y, first.Points[1].Y, first.Points[2].Y})
	assert.Equal(t, []Tooltip{
		{Index: 0, Label: "<div class='label'>CS101: Essay</div>"},
		{Index: 1, Label: "<div class='label'>CS102: Lab 1</div>"},
		{Index: 2, Label: "<div class='label'>CS101: Exam</div>"},
	}, first.Tooltips)
	require.NotNil(t, first.Overlay)
	assert.Equal(t, OverlayLinear, first.Overlay.Kind)
	assert.Equal(t, []float64{first.Points[0].X, first.Points[2].X}, first.Overlay.X)

	second := chart.Panels[1]
	require.Len(t, second.Points, 2)
	require.NotNil(t, second.Overlay)
	assert.InDelta(t, 82, second.Overlay.Y[0], 1e-6)
	assert.InDelta(t, 45, second.Overlay.Y[1], 1e-6)
	assert.Empty(t, second.Overlay.Dropped)
}

func TestAssemble_ScatterTrimsOutlierButPlotsIt(t *testing.T) {
	snap := &snapshot.Snapshot{
		Assignments: []records.AssignmentRecord{
			{Name: "A", ModuleCode: "M1", Deadline: date(2020, time.October, 1), Mark: 40},
			{Name: "B", ModuleCode: "M1", Deadline: date(2020, time.October, 11), Mark: 95},
			{Name: "C", ModuleCode: "M1", Deadline: date(2020, time.October, 31), Mark: 42},
		},
		Course: records.Course{Start: time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC), Years: 1},
	}

	var trimmed []int
	a := newTestAssembler(t, WithTrimObserver(func(_ context.Context, variant string, dropped int) {
		if variant == string(OverlayLinear) {
			trimmed = append(trimmed, dropped)
		}
	}))

	chart, err := a.Assemble(context.Background(), PageScatter, snap)
	require.NoError(t, err)
	require.Len(t, chart.Panels, 1)

	panel := chart.Panels[0]
	assert.Equal(t, "2020/21", panel.Label)
	assert.Len(t, panel.Points, 3)
	require.NotNil(t, panel.Overlay)
	assert.Equal(t, []int{1}, panel.Overlay.Dropped)
	assert.Equal(t, 1, panel.Overlay.Trimmed)
	assert.InDelta(t, 40, panel.Overlay.Y[0], 1e-6)
	assert.InDelta(t, 42, panel.Overlay.Y[1], 1e-6)
	assert.Equal(t, []int{1}, trimmed)
}

func TestAssemble_ScatterTrimsOutlierWherever(t *testing.T) {
	tests := []struct {
		name        string
		days        []int
		marks       []int
		wantDropped []int
	}{
		{"even deadlines", []int{1, 11, 21}, []int{40, 95, 42}, []int{1}},
		{"outlier first", []int{1, 11, 31}, []int{95, 40, 42}, []int{0}},
		{"outlier last", []int{1, 11, 31}, []int{40, 42, 95}, []int{2}},
		{"outlier last on even deadlines", []int{1, 11, 21}, []int{40, 42, 95}, []int{2}},
		{"ordinary marks", []int{1, 11, 31}, []int{60, 62, 61}, nil},
		{"close marks", []int{1, 11, 31}, []int{40, 41, 42}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &snapshot.Snapshot{
				Course: records.Course{Start: time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC), Years: 1},
			}
			for i := range tt.days {
				snap.Assignments = append(snap.Assignments, records.AssignmentRecord{
					Name:       string(rune('A' + i)),
					ModuleCode: "M1",
					Deadline:   date(2020, time.October, tt.days[i]),
					Mark:       tt.marks[i],
				})
			}

			chart, err := newTestAssembler(t).Assemble(context.Background(), PageScatter, snap)
			require.NoError(t, err)
			require.Len(t, chart.Panels, 1)

			panel := chart.Panels[0]
			assert.Len(t, panel.Points, len(tt.days), "trimmed points are still plotted")
			require.NotNil(t, panel.Overlay)
			assert.Equal(t, tt.wantDropped, panel.Overlay.Dropped)
			assert.Equal(t, len(tt.wantDropped), panel.Overlay.Trimmed)
		})
	}
}

func TestAssemble_SubmissionDelta(t *testing.T) {
	chart, err := newTestAssembler(t).Assemble(context.Background(), PageSubmissionDelta, sampleSnapshot(t))
	require.NoError(t, err)

	assert.Equal(t, XKindNumeric, chart.XKind)
	require.Len(t, chart.Panels, 1, "only records with a submission time are plotted")

	panel := chart.Panels[0]
	assert.Equal(t, "2020/21", panel.Label)
	assert.Equal(t, []Point{{X: 24, Y: 64}}, panel.Points)
	assert.Nil(t, panel.Overlay, "a single point has no fit")
}

func TestAssemble_MarksHistogram(t *testing.T) {
	chart, err := newTestAssembler(t).Assemble(context.Background(), PageMarksHistogram, sampleSnapshot(t))
	require.NoError(t, err)

	assert.Equal(t, XKindBins, chart.XKind)
	require.Equal(t, []string{"2020/21", "2021/22"}, panelLabels(chart))

	edges := []int{45, 48, 52, 55, 58, 62, 65, 68, 74, 78, 82}
	for _, panel := range chart.Panels {
		require.Len(t, panel.Bars, len(edges)-1, "panels share the global bins")
		for i, bar := range panel.Bars {
			assert.Equal(t, edges[i], bar.Lo)
			assert.Equal(t, edges[i+1], bar.Hi)
		}
	}

	counts := func(p Panel) []int {
		out := make([]int, len(p.Bars))
		for i, b := range p.Bars {
			out[i] = b.Count
		}
		return out
	}
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 0, 1, 0, 0}, counts(chart.Panels[0]))
	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 0, 0, 0, 1}, counts(chart.Panels[1]))

	assert.Equal(t, []Tooltip{
		{Index: 4, Label: "Exam"},
		{Index: 5, Label: "Essay"},
		{Index: 7, Label: "Lab 1"},
	}, chart.Panels[0].Tooltips)
	assert.Equal(t, []Tooltip{
		{Index: 0, Label: "Quiz"},
		{Index: 9, Label: "Project"},
	}, chart.Panels[1].Tooltips)

	overlay := chart.Panels[0].Overlay
	require.NotNil(t, overlay)
	assert.Equal(t, OverlayGaussian, overlay.Kind)
	assert.Len(t, overlay.X, DefaultCurveSamples)
	assert.InDelta(t, 45.0, overlay.X[0], 1e-9)
	assert.InDelta(t, 82.0, overlay.X[len(overlay.X)-1], 1e-9)

	top := 0.0
	for _, y := range overlay.Y {
		top = max(top, y)
	}
	assert.InDelta(t, 1.0, top, 1e-9, "curve is scaled to the tallest bar")
}

func TestAssemble_MarksHistogramTrimsOutlier(t *testing.T) {
	marks := []int{60, 62, 61, 63, 59, 62, 61, 20}
	snap := &snapshot.Snapshot{
		Course: records.Course{Start: time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC), Years: 1},
	}
	for i, m := range marks {
		snap.Assignments = append(snap.Assignments, records.AssignmentRecord{
			Name:     string(rune('A' + i)),
			Deadline: date(2020, time.October, 1+i),
			Mark:     m,
		})
	}

	chart, err := newTestAssembler(t).Assemble(context.Background(), PageMarksHistogram, snap)
	require.NoError(t, err)
	require.Len(t, chart.Panels, 1)

	overlay := chart.Panels[0].Overlay
	require.NotNil(t, overlay)
	assert.Equal(t, 1, overlay.Trimmed)

	// The curve peaks at the mean of the surviving marks
	peak := 0
	for i, y := range overlay.Y {
		if y > overlay.Y[peak] {
			peak = i
		}
	}
	step := overlay.X[1] - overlay.X[0]
	assert.InDelta(t, 61.14, overlay.X[peak], step)
}

func TestAssemble_MarksHistogramKeepsBellShapedSample(t *testing.T) {
	marks := []int{55, 58, 60, 61, 62, 63, 64, 66, 69, 72}
	snap := &snapshot.Snapshot{
		Course: records.Course{Start: time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC), Years: 1},
	}
	for i, m := range marks {
		snap.Assignments = append(snap.Assignments, records.AssignmentRecord{
			Name:     string(rune('A' + i)),
			Deadline: date(2020, time.October, 1+i),
			Mark:     m,
		})
	}

	chart, err := newTestAssembler(t).Assemble(context.Background(), PageMarksHistogram, snap)
	require.NoError(t, err)
	require.Len(t, chart.Panels, 1)

	overlay := chart.Panels[0].Overlay
	require.NotNil(t, overlay)
	assert.Zero(t, overlay.Trimmed)
}

func TestAssemble_ModuleHistogram(t *testing.T) {
	chart, err := newTestAssembler(t).Assemble(context.Background(), PageModuleHistogram, sampleSnapshot(t))
	require.NoError(t, err)

	require.Equal(t, []string{"2020/21", "2021/22"}, panelLabels(chart))

	first := chart.Panels[0]
	require.Len(t, first.Bars, 5)
	assert.Equal(t, 58, first.Bars[0].Lo)
	assert.Equal(t, 78, first.Bars[4].Hi)
	assert.Equal(t, []Tooltip{
		{Index: 0, Label: "Programming"},
		{Index: 3, Label: "Systems"},
	}, first.Tooltips)
	assert.NotNil(t, first.Overlay)

	second := chart.Panels[1]
	assert.Equal(t, []Tooltip{{Index: 4, Label: "Networks"}}, second.Tooltips, "ungraded modules are left out")
	assert.Equal(t, 1, second.Bars[4].Count, "top edge belongs to the last bin")
	assert.Nil(t, second.Overlay, "a single mark has no spread to draw")
}

func TestAssemble_EmptySnapshot(t *testing.T) {
	snap := &snapshot.Snapshot{
		Course: records.Course{Start: date(2020, time.September, 1), Years: 3},
	}

	for _, page := range Pages() {
		t.Run(page.String(), func(t *testing.T) {
			chart, err := newTestAssembler(t).Assemble(context.Background(), page, snap)
			require.NoError(t, err)
			assert.NotNil(t, chart.Panels)
			assert.Empty(t, chart.Panels)

			data, err := json.Marshal(chart)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"panels":[]`)
		})
	}
}

func TestAssemble_BoundaryRecordExcluded(t *testing.T) {
	snap := &snapshot.Snapshot{
		Assignments: []records.AssignmentRecord{
			{Name: "on boundary", Deadline: date(2021, time.September, 1), Mark: 50},
			{Name: "inside", Deadline: date(2021, time.October, 1), Mark: 60},
		},
		Course: records.Course{Start: date(2020, time.September, 1), Years: 3},
	}

	chart, err := newTestAssembler(t).Assemble(context.Background(), PageScatter, snap)
	require.NoError(t, err)
	require.Len(t, chart.Panels, 1)
	assert.Len(t, chart.Panels[0].Points, 1)
	assert.Equal(t, 60.0, chart.Panels[0].Points[0].Y)
}

func TestAssemble_Errors(t *testing.T) {
	a := newTestAssembler(t)

	_, err := a.Assemble(context.Background(), Page(9), &snapshot.Snapshot{})
	assert.ErrorIs(t, err, ErrUnknownPage)

	_, err = a.Assemble(context.Background(), PageScatter, nil)
	assert.Error(t, err)

	_, err = a.Assemble(context.Background(), PageScatter, &snapshot.Snapshot{
		Course: records.Course{Start: date(2020, time.September, 1), Years: -1},
	})
	assert.ErrorIs(t, err, marks.ErrInvalidCourseLength)
}
