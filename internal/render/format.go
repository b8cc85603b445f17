package render

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for an image format other than png or svg.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format is an image encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat parses s case-insensitively. An empty string means PNG.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string { return string(f) }

// Bounds on a requested image dimension, in pixels.
const (
	MinDimension = 100
	MaxDimension = 4096
)

// ErrInvalidSize is returned by Size.Validate.
var ErrInvalidSize = errors.New("invalid image size")

// Size is an image size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool { return s.Width > 0 && s.Height > 0 }

// Validate checks a requested size. The zero Size asks for the default and is
// valid; otherwise both dimensions must lie in [MinDimension, MaxDimension].
func (s Size) Validate() error {
	if s == (Size{}) {
		return nil
	}
	for _, d := range []struct {
		name string
		v    int
	}{{"width", s.Width}, {"height", s.Height}} {
		if d.v < MinDimension || d.v > MaxDimension {
			return fmt.Errorf("%w: %s %d outside [%d, %d]", ErrInvalidSize, d.name, d.v, MinDimension, MaxDimension)
		}
	}
	return nil
}

// Or returns s, or def when s is not valid.
func (s Size) Or(def Size) Size {
	if s.Valid() {
		return s
	}
	return def
}
