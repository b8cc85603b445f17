package render

import (
	"context"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"markscope/internal/charts"
	"markscope/internal/marks"
)

const noDataMessage = "No data for this page."

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// DefaultSize is used when no size is requested.
var DefaultSize = Size{Width: 1280, Height: 720}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTracer traces every render.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Renderer) { r.tracer = tracer }
}

// Renderer draws assembled charts as images and HTML pages.
type Renderer struct {
	size   Size
	logger *slog.Logger
	tracer trace.Tracer
}

// NewRenderer creates a renderer whose default image size is size.
func NewRenderer(size Size, logger *slog.Logger, opts ...Option) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Renderer{
		size:   size.Or(DefaultSize),
		logger: logger.With(slog.String("component", "renderer")),
		tracer: noop.NewTracerProvider().Tracer("render"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Size returns the size used when a request does not name one.
func (r *Renderer) Size() Size { return r.size }

// Image renders c as a single image with one cell per panel, laid out by
// charts.Layout and labelled with the panel's academic year.
func (r *Renderer) Image(ctx context.Context, c *charts.Chart, size Size, format Format) (data []byte, err error) {
	size = size.Or(r.size)
	_, span := r.tracer.Start(ctx, "chart.render", trace.WithAttributes(
		attribute.String("chart.page", c.Slug),
		attribute.String("render.format", string(format)),
		attribute.Int("render.width", size.Width),
		attribute.Int("render.height", size.Height),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	switch format {
	case FormatPNG:
		data, err = compositePNG(c, size)
	case FormatSVG:
		data, err = compositeSVG(c, size)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "chart rendered",
		slog.String("page", c.Slug),
		slog.String("format", string(format)),
		slog.Int("bytes", len(data)))
	return data, nil
}

// PageView is the data behind one HTML chart page.
type PageView struct {
	Title  string
	Cols   int
	Panels []PanelView
	Prev   string
	Next   string
}

// PanelView is one panel of a PageView.
type PanelView struct {
	Label    string
	SVG      template.HTML
	Tooltips []TooltipView
}

// TooltipView is hover text that is already safe HTML.
type TooltipView struct {
	Index int
	Label template.HTML
}

// BuildPage lays c out as a page, rendering every panel to inline SVG.
func (r *Renderer) BuildPage(ctx context.Context, c *charts.Chart) (*PageView, error) {
	view := &PageView{Title: c.Title}
	if c.Page.HasPrev() {
		view.Prev = fmt.Sprintf("/p%d", c.Page.Number()-1)
	}
	if c.Page.HasNext() {
		view.Next = fmt.Sprintf("/p%d", c.Page.Number()+1)
	}

	g := layoutGrid(max(1, len(c.Panels)), r.size)
	view.Cols = g.cols
	for _, p := range c.Panels {
		svg, err := renderPanel(c, p, g.plotSize(), FormatSVG)
		if err != nil {
			return nil, err
		}
		panel := PanelView{Label: p.Label, SVG: template.HTML(svg)}
		for _, tip := range p.Tooltips {
			panel.Tooltips = append(panel.Tooltips, TooltipView{Index: tip.Index, Label: tooltipHTML(c.XKind, tip.Label)})
		}
		view.Panels = append(view.Panels, panel)
	}
	return view, nil
}

// Page writes c as a complete HTML page with back and next buttons.
func (r *Renderer) Page(ctx context.Context, w io.Writer, c *charts.Chart) (err error) {
	ctx, span := r.tracer.Start(ctx, "chart.render", trace.WithAttributes(
		attribute.String("chart.page", c.Slug),
		attribute.String("render.format", "html"),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	view, err := r.BuildPage(ctx, c)
	if err != nil {
		return err
	}
	if err := pageTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("failed to execute page template: %w", err)
	}
	return nil
}

// tooltipHTML returns tooltip text as HTML. Point labels are produced already
// escaped; bin labels are raw names joined with marks.LineBreak.
func tooltipHTML(kind charts.XKind, label string) template.HTML {
	if kind != charts.XKindBins {
		return template.HTML(label)
	}
	names := strings.Split(label, marks.LineBreak)
	for i, n := range names {
		names[i] = html.EscapeString(n)
	}
	return template.HTML(strings.Join(names, marks.LineBreak))
}
