package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"markscope/internal/charts"
	apierrors "markscope/internal/errors"
	"markscope/internal/render"
	"markscope/internal/services"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestChartHandler_ListPages(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.chart.On("Pages").Return([]services.PageInfo{
		{Number: 1, Slug: "scatter", Title: "Assignment marks over time", Path: "/p1"},
		{Number: 2, Slug: "submission-delta", Title: "Mark against submission time", Path: "/p2"},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var pages []services.PageInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pages))
	require.Len(t, pages, 2)
	assert.Equal(t, "submission-delta", pages[1].Slug)
}

func TestChartHandler_GetChart(t *testing.T) {
	chart := &charts.Chart{Page: charts.PageScatter, Slug: "scatter", Title: "Assignment marks over time", XKind: charts.XKindTime}
	notFound := fmt.Errorf("%w: %d", charts.ErrUnknownPage, 9)

	tests := []struct {
		name        string
		ref         string
		ifNoneMatch string
		setup       func(m *MockChartService)
		wantStatus  int
		wantType    string
	}{
		{
			name:       "success",
			ref:        "1",
			setup:      func(m *MockChartService) { m.On("Chart", "1").Return(chart, `"abc-scatter-json"`, nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:        "not modified",
			ref:         "scatter",
			ifNoneMatch: `"abc-scatter-json"`,
			setup:       func(m *MockChartService) { m.On("Chart", "scatter").Return(chart, `"abc-scatter-json"`, nil) },
			wantStatus:  http.StatusNotModified,
		},
		{
			name:       "unknown page",
			ref:        "9",
			setup:      func(m *MockChartService) { m.On("Chart", "9").Return(nil, "", notFound) },
			wantStatus: http.StatusNotFound,
			wantType:   apierrors.TypePageNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := newTestRouter(t)
			tt.setup(svc.chart)

			req := httptest.NewRequest(http.MethodGet, "/api/charts/"+tt.ref, nil)
			if tt.ifNoneMatch != "" {
				req.Header.Set("If-None-Match", tt.ifNoneMatch)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			switch {
			case tt.wantType != "":
				assert.Equal(t, tt.wantType, decodeBody(t, rec)["type"])
			case rec.Code == http.StatusOK:
				assert.Equal(t, `"abc-scatter-json"`, rec.Header().Get("ETag"))
				body := decodeBody(t, rec)
				assert.Equal(t, "scatter", body["slug"])
				assert.Equal(t, "time", body["x_kind"])
			default:
				assert.Empty(t, rec.Body.Bytes())
			}
		})
	}
}

func TestChartHandler_GetImage(t *testing.T) {
	png := &services.Image{Data: []byte("\x89PNG"), ContentType: "image/png", ETag: `"abc-scatter-png-800x600"`, Filename: "scatter.png"}

	tests := []struct {
		name       string
		target     string
		setup      func(m *MockChartService)
		wantStatus int
		wantType   string
	}{
		{
			name:   "default size",
			target: "/api/charts/1/image",
			setup: func(m *MockChartService) {
				m.On("Image", "1", "", render.Size{}).Return(png, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "explicit size and format",
			target: "/api/charts/scatter/image?format=png&width=800&height=600",
			setup: func(m *MockChartService) {
				m.On("Image", "scatter", "png", render.Size{Width: 800, Height: 600}).Return(png, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "width not a number",
			target:     "/api/charts/1/image?width=wide&height=600",
			setup:      func(m *MockChartService) {},
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
		},
		{
			name:       "width without height",
			target:     "/api/charts/1/image?width=800",
			setup:      func(m *MockChartService) {},
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
		},
		{
			name:       "too small",
			target:     "/api/charts/1/image?width=10&height=10",
			setup:      func(m *MockChartService) {},
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
		},
		{
			name:       "unsupported format",
			target:     "/api/charts/1/image?format=gif",
			setup:      func(m *MockChartService) {},
			wantStatus: http.StatusBadRequest,
			wantType:   apierrors.TypeValidation,
		},
		{
			name:   "unknown page",
			target: "/api/charts/0/image",
			setup: func(m *MockChartService) {
				m.On("Image", "0", "", render.Size{}).Return(nil, fmt.Errorf("%w: %d", charts.ErrUnknownPage, 0))
			},
			wantStatus: http.StatusNotFound,
			wantType:   apierrors.TypePageNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := newTestRouter(t)
			tt.setup(svc.chart)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, decodeBody(t, rec)["type"])
				svc.chart.AssertNotCalled(t, "Image", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
			assert.Equal(t, png.ETag, rec.Header().Get("ETag"))
			assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
			assert.Equal(t, png.Data, rec.Body.Bytes())
		})
	}
}

func TestChartHandler_GetImageNotModified(t *testing.T) {
	router, svc := newTestRouter(t)
	svg := &services.Image{Data: []byte("<svg/>"), ContentType: "image/svg+xml", ETag: `"abc-scatter-svg"`, Filename: "scatter.svg", Cached: true}
	svc.chart.On("Image", "1", "svg", render.Size{}).Return(svg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/charts/1/image?format=svg", nil)
	req.Header.Set("If-None-Match", svg.ETag)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Empty(t, rec.Body.Bytes())
}
