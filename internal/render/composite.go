package render

import (
	"bytes"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"markscope/internal/charts"
)

const (
	headerHeight = 28
	labelHeight  = 18
	textMargin   = 8

	// A panel's plot never shrinks below this; go-chart's padding and axes
	// need the room. The composite grows past the requested size instead.
	minPlotWidth  = 120
	minPlotHeight = 80
)

var (
	colorBackground = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorText       = color.RGBA{R: 0x3C, G: 0x10, B: 0x53, A: 255}
)

// grid describes where each panel goes in a composite image.
type grid struct {
	rows, cols int
	cell       Size
}

func layoutGrid(n int, size Size) grid {
	rows, cols := charts.Layout(n)
	if cols == 0 {
		cols = 1
	}
	return grid{
		rows: rows,
		cols: cols,
		cell: Size{
			Width:  max(size.Width/cols, minPlotWidth),
			Height: max((size.Height-headerHeight)/rows, minPlotHeight+labelHeight),
		},
	}
}

// canvas is size, grown where the cells do not fit in it.
func (g grid) canvas(size Size) Size {
	return Size{
		Width:  max(size.Width, g.cols*g.cell.Width),
		Height: max(size.Height, headerHeight+g.rows*g.cell.Height),
	}
}

// origin returns the top-left corner of panel i; panels fill rows first.
func (g grid) origin(i int) image.Point {
	return image.Point{
		X: (i % g.cols) * g.cell.Width,
		Y: headerHeight + (i/g.cols)*g.cell.Height,
	}
}

// plotSize is the cell size left for the chart once the year label is drawn.
func (g grid) plotSize() Size {
	return Size{Width: g.cell.Width, Height: g.cell.Height - labelHeight}
}

func compositePNG(c *charts.Chart, size Size) ([]byte, error) {
	g := layoutGrid(max(1, len(c.Panels)), size)
	size = g.canvas(size)

	canvas := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)
	drawText(canvas, c.Title, textMargin, headerHeight-textMargin)

	if len(c.Panels) == 0 {
		drawText(canvas, noDataMessage, textMargin, headerHeight+2*labelHeight)
		return encodePNG(canvas)
	}

	for i, p := range c.Panels {
		data, err := renderPanel(c, p, g.plotSize(), FormatPNG)
		if err != nil {
			return nil, err
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode panel %s: %w", p.Label, err)
		}

		at := g.origin(i)
		drawText(canvas, p.Label, at.X+textMargin, at.Y+labelHeight-4)
		dst := image.Rectangle{Min: at.Add(image.Point{Y: labelHeight}), Max: at.Add(image.Point{X: g.cell.Width, Y: g.cell.Height})}
		draw.Draw(canvas, dst, img, img.Bounds().Min, draw.Over)
	}
	return encodePNG(canvas)
}

// drawText writes s with its baseline at (x, y).
func drawText(dst draw.Image, s string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(colorText),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(s)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// compositeSVG nests each panel's SVG document inside one outer document.
func compositeSVG(c *charts.Chart, size Size) ([]byte, error) {
	g := layoutGrid(max(1, len(c.Panels)), size)
	size = g.canvas(size)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		size.Width, size.Height, size.Width, size.Height)
	fmt.Fprintf(&buf, `<rect width="100%%" height="100%%" fill="white"/>`)
	svgText(&buf, c.Title, textMargin, headerHeight-textMargin, 16)

	if len(c.Panels) == 0 {
		svgText(&buf, noDataMessage, textMargin, headerHeight+2*labelHeight, 13)
	}

	for i, p := range c.Panels {
		data, err := renderPanel(c, p, g.plotSize(), FormatSVG)
		if err != nil {
			return nil, err
		}
		at := g.origin(i)
		svgText(&buf, p.Label, at.X+textMargin, at.Y+labelHeight-4, 13)
		fmt.Fprintf(&buf, `<g transform="translate(%d,%d)">`, at.X, at.Y+labelHeight)
		buf.Write(data)
		buf.WriteString(`</g>`)
	}

	buf.WriteString(`</svg>`)
	return buf.Bytes(), nil
}

func svgText(buf *bytes.Buffer, s string, x, y, px int) {
	fmt.Fprintf(buf, `<text x="%d" y="%d" font-family="sans-serif" font-size="%d" fill="#3C1053">%s</text>`,
		x, y, px, html.EscapeString(s))
}
