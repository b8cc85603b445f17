package services

import (
	"errors"

	"markscope/internal/charts"
	"markscope/internal/render"
)

// Chart service errors
var (
	ErrPageNotFound      = charts.ErrUnknownPage
	ErrUnsupportedFormat = render.ErrUnsupportedFormat

	// Export errors
	ErrUnknownTable = errors.New("unknown export table")
)
