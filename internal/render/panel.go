package render

import (
	"bytes"
	"fmt"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"markscope/internal/charts"
)

var (
	colorPoints  = drawing.ColorFromHex("3C1053")
	colorOverlay = chart.ColorRed
	colorBars    = drawing.ColorFromHex("8E7CC3")
)

const (
	markAxisMin = 0
	markAxisMax = 100

	// singlePointPad widens a degenerate x-range so a lone point can be drawn
	singlePointPadTime    = 12 * time.Hour
	singlePointPadNumeric = 1.0
)

// pointStyle draws points only, without connecting lines.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    4,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 2,
		StrokeColor: col,
	}
}

// renderPanel draws one panel of c with go-chart.
func renderPanel(c *charts.Chart, p charts.Panel, size Size, format Format) ([]byte, error) {
	var (
		series []chart.Series
		xAxis  chart.XAxis
		yAxis  chart.YAxis
	)

	switch c.XKind {
	case charts.XKindBins:
		series, xAxis, yAxis = histogramSeries(p)
	case charts.XKindTime:
		series, xAxis, yAxis = timeSeries(p)
	default:
		series, xAxis, yAxis = numericSeries(p)
	}
	xAxis.Name = c.XLabel
	yAxis.Name = c.YLabel

	ch := chart.Chart{
		Width:      size.Width,
		Height:     size.Height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 12}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series:     series,
	}

	provider := chart.PNG
	if format == FormatSVG {
		provider = chart.SVG
	}

	var buf bytes.Buffer
	if err := ch.Render(provider, &buf); err != nil {
		return nil, fmt.Errorf("failed to render panel %s: %w", p.Label, err)
	}
	return buf.Bytes(), nil
}

func toTime(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

func xBounds(points []charts.Point) (lo, hi float64) {
	lo, hi = points[0].X, points[0].X
	for _, pt := range points {
		lo = min(lo, pt.X)
		hi = max(hi, pt.X)
	}
	return lo, hi
}

func markAxis() chart.YAxis {
	return chart.YAxis{Range: &chart.ContinuousRange{Min: markAxisMin, Max: markAxisMax}}
}

func timeSeries(p charts.Panel) ([]chart.Series, chart.XAxis, chart.YAxis) {
	xs := make([]time.Time, len(p.Points))
	ys := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		xs[i] = toTime(pt.X)
		ys[i] = pt.Y
	}

	series := []chart.Series{chart.TimeSeries{Name: p.Label, XValues: xs, YValues: ys, Style: pointStyle(colorPoints)}}
	if p.Overlay != nil && len(p.Overlay.X) >= 2 {
		lx := make([]time.Time, len(p.Overlay.X))
		for i, x := range p.Overlay.X {
			lx[i] = toTime(x)
		}
		series = append(series, chart.TimeSeries{Name: "fit", XValues: lx, YValues: p.Overlay.Y, Style: lineStyle(colorOverlay)})
	}

	xAxis := chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat(time.DateOnly)}
	if lo, hi := xBounds(p.Points); lo == hi {
		pad := singlePointPadTime
		xAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(toTime(lo).Add(-pad)),
			Max: chart.TimeToFloat64(toTime(hi).Add(pad)),
		}
	}
	return series, xAxis, markAxis()
}

func numericSeries(p charts.Panel) ([]chart.Series, chart.XAxis, chart.YAxis) {
	xs := make([]float64, len(p.Points))
	ys := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		xs[i] = pt.X
		ys[i] = pt.Y
	}

	series := []chart.Series{chart.ContinuousSeries{Name: p.Label, XValues: xs, YValues: ys, Style: pointStyle(colorPoints)}}
	if p.Overlay != nil && len(p.Overlay.X) >= 2 {
		series = append(series, chart.ContinuousSeries{Name: "fit", XValues: p.Overlay.X, YValues: p.Overlay.Y, Style: lineStyle(colorOverlay)})
	}

	var xAxis chart.XAxis
	if lo, hi := xBounds(p.Points); lo == hi {
		xAxis.Range = &chart.ContinuousRange{Min: lo - singlePointPadNumeric, Max: hi + singlePointPadNumeric}
	}
	return series, xAxis, markAxis()
}

// histogramSeries draws the bars as one filled step outline so bins keep their
// true widths on a numeric axis and the overlay can share it.
func histogramSeries(p charts.Panel) ([]chart.Series, chart.XAxis, chart.YAxis) {
	xs := make([]float64, 0, 4*len(p.Bars))
	ys := make([]float64, 0, 4*len(p.Bars))
	for _, b := range p.Bars {
		lo, hi, c := float64(b.Lo), float64(b.Hi), float64(b.Count)
		xs = append(xs, lo, lo, hi, hi)
		ys = append(ys, 0, c, c, 0)
	}

	series := []chart.Series{chart.ContinuousSeries{
		Name:    p.Label,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeWidth: 1,
			StrokeColor: colorPoints,
			FillColor:   colorBars.WithAlpha(160),
		},
	}}
	if p.Overlay != nil && len(p.Overlay.X) >= 2 {
		series = append(series, chart.ContinuousSeries{Name: "fit", XValues: p.Overlay.X, YValues: p.Overlay.Y, Style: lineStyle(colorOverlay)})
	}

	xAxis := chart.XAxis{Ticks: binTicks(p.Bars)}
	if len(p.Bars) > 0 {
		xAxis.Range = &chart.ContinuousRange{Min: float64(p.Bars[0].Lo), Max: float64(p.Bars[len(p.Bars)-1].Hi)}
	}

	top := float64(max(1, p.MaxBar()))
	yAxis := chart.YAxis{
		Range: &chart.ContinuousRange{Min: 0, Max: top},
		Ticks: countTicks(int(top)),
	}
	return series, xAxis, yAxis
}

func binTicks(bars []charts.Bar) []chart.Tick {
	if len(bars) == 0 {
		return nil
	}
	ticks := make([]chart.Tick, 0, len(bars)+1)
	for _, b := range bars {
		ticks = append(ticks, chart.Tick{Value: float64(b.Lo), Label: fmt.Sprintf("%d", b.Lo)})
	}
	last := bars[len(bars)-1].Hi
	return append(ticks, chart.Tick{Value: float64(last), Label: fmt.Sprintf("%d", last)})
}

// countTicks labels whole frequencies only, thinning them out for tall panels.
func countTicks(top int) []chart.Tick {
	step := 1
	for top/step > 10 {
		step *= 2
	}
	var ticks []chart.Tick
	for v := 0; v <= top; v += step {
		ticks = append(ticks, chart.Tick{Value: float64(v), Label: fmt.Sprintf("%d", v)})
	}
	return ticks
}
