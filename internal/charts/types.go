package charts

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownPage is returned for a page number or slug outside the navigation order.
var ErrUnknownPage = errors.New("unknown chart page")

// Page identifies one chart page. Pages are numbered from 1 in navigation order.
type Page int

const (
	// PageScatter plots each assignment mark against its deadline
	PageScatter Page = iota + 1
	// PageSubmissionDelta plots marks against how early the work was handed in
	PageSubmissionDelta
	// PageMarksHistogram bins assignment marks per academic year
	PageMarksHistogram
	// PageModuleHistogram bins final module marks per academic year
	PageModuleHistogram

	pageCount = int(PageModuleHistogram)
)

type pageInfo struct {
	slug   string
	title  string
	xLabel string
	yLabel string
	xKind  XKind
}

var pageTable = map[Page]pageInfo{
	PageScatter:         {"scatter", "Assignment marks over time", "Deadline", "Mark", XKindTime},
	PageSubmissionDelta: {"submission-delta", "Mark against submission time", "Hours submitted before deadline", "Mark", XKindNumeric},
	PageMarksHistogram:  {"marks-histogram", "Assignment mark distribution", "Mark", "Frequency", XKindBins},
	PageModuleHistogram: {"module-histogram", "Module mark distribution", "Mark", "Frequency", XKindBins},
}

// Pages returns every page in navigation order.
func Pages() []Page {
	pages := make([]Page, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		pages = append(pages, Page(n))
	}
	return pages
}

// PageFromNumber returns the page with navigation number n.
func PageFromNumber(n int) (Page, error) {
	p := Page(n)
	if !p.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPage, n)
	}
	return p, nil
}

// PageFromSlug returns the page whose slug is s.
func PageFromSlug(s string) (Page, error) {
	for p, info := range pageTable {
		if info.slug == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPage, s)
}

// ParsePage accepts either a page number or a slug.
func ParsePage(s string) (Page, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return PageFromNumber(n)
	}
	return PageFromSlug(s)
}

// Valid reports whether p is a known page.
func (p Page) Valid() bool {
	_, ok := pageTable[p]
	return ok
}

// Number is the 1-based navigation position.
func (p Page) Number() int { return int(p) }

// String returns the page slug
func (p Page) String() string {
	if info, ok := pageTable[p]; ok {
		return info.slug
	}
	return "unknown"
}

// Title returns the human-readable page title.
func (p Page) Title() string { return pageTable[p].title }

// HasPrev reports whether a page precedes p.
func (p Page) HasPrev() bool { return p > PageScatter && p.Valid() }

// HasNext reports whether a page follows p.
func (p Page) HasNext() bool { return p < PageModuleHistogram && p.Valid() }

// XKind says how a chart's x values are to be read.
type XKind string

const (
	// XKindTime x values are seconds since the Unix epoch
	XKindTime XKind = "time"
	// XKindNumeric x values are plain numbers
	XKindNumeric XKind = "numeric"
	// XKindBins the chart is drawn from Bars; points are unused
	XKindBins XKind = "bins"
)

// OverlayKind names the fitted model drawn over a panel.
type OverlayKind string

const (
	OverlayLinear   OverlayKind = "linear"
	OverlayGaussian OverlayKind = "gaussian"
)

// Chart is one assembled page: a panel per academic year sharing axis labels.
type Chart struct {
	Page   Page    `json:"page"`
	Slug   string  `json:"slug"`
	Title  string  `json:"title"`
	XLabel string  `json:"x_label"`
	YLabel string  `json:"y_label"`
	XKind  XKind   `json:"x_kind"`
	Panels []Panel `json:"panels"`
}

// Panel is the chart for one academic year.
type Panel struct {
	Label    string    `json:"label"`
	Points   []Point   `json:"points,omitempty"`
	Bars     []Bar     `json:"bars,omitempty"`
	Overlay  *Overlay  `json:"overlay,omitempty"`
	Tooltips []Tooltip `json:"tooltips,omitempty"`
}

// Point is a single plotted record.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bar is one histogram bin [Lo, Hi). The last bar of a panel also contains Hi.
type Bar struct {
	Lo    int `json:"lo"`
	Hi    int `json:"hi"`
	Count int `json:"count"`
}

// Overlay is a fitted curve sampled for drawing.
type Overlay struct {
	Kind OverlayKind `json:"kind"`
	X    []float64   `json:"x"`
	Y    []float64   `json:"y"`
	// Dropped lists the point indices left out of a linear fit. Plotted points
	// are never removed.
	Dropped []int `json:"dropped,omitempty"`
	Trimmed int   `json:"trimmed"`
}

// Tooltip binds hover text to the point or bar at Index.
type Tooltip struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// MaxBar returns the tallest bar count in the panel.
func (p Panel) MaxBar() int {
	top := 0
	for _, b := range p.Bars {
		if b.Count > top {
			top = b.Count
		}
	}
	return top
}

// Layout returns the panel grid for n panels: filled horizontally, two per row.
func Layout(n int) (rows, cols int) {
	rows = (n + 1) / 2
	if rows < 1 {
		rows = 1
	}
	cols = n
	if cols > 2 {
		cols = 2
	}
	return rows, cols
}
