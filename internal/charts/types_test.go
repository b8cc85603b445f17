package charts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPages(t *testing.T) {
	pages := Pages()
	require.Len(t, pages, 4)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Number())
		assert.True(t, p.Valid())
		assert.NotEmpty(t, p.Title())
	}

	assert.False(t, PageScatter.HasPrev())
	assert.True(t, PageScatter.HasNext())
	assert.True(t, PageModuleHistogram.HasPrev())
	assert.False(t, PageModuleHistogram.HasNext())
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		in      string
		want    Page
		wantErr bool
	}{
		{in: "1", want: PageScatter},
		{in: "4", want: PageModuleHistogram},
		{in: "submission-delta", want: PageSubmissionDelta},
		{in: "marks-histogram", want: PageMarksHistogram},
		{in: "0", wantErr: true},
		{in: "5", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "pie", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePage(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownPage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageString(t *testing.T) {
	assert.Equal(t, "scatter", PageScatter.String())
	assert.Equal(t, "unknown", Page(0).String())
}

func TestLayout(t *testing.T) {
	tests := []struct {
		n          int
		rows, cols int
	}{
		{0, 1, 0},
		{1, 1, 1},
		{2, 1, 2},
		{3, 2, 2},
		{4, 2, 2},
		{5, 3, 2},
	}

	for _, tt := range tests {
		rows, cols := Layout(tt.n)
		assert.Equal(t, tt.rows, rows, "rows for %d panels", tt.n)
		assert.Equal(t, tt.cols, cols, "cols for %d panels", tt.n)
		assert.GreaterOrEqual(t, rows*cols, tt.n)
	}
}

func TestPanelMaxBar(t *testing.T) {
	p := Panel{Bars: []Bar{{Count: 1}, {Count: 4}, {Count: 2}}}
	assert.Equal(t, 4, p.MaxBar())
	assert.Equal(t, 0, Panel{}.MaxBar())
}
