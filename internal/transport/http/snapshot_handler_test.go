package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apierrors "markscope/internal/errors"
	"markscope/internal/services"
)

func TestSnapshotHandler(t *testing.T) {
	info := services.SnapshotInfo{Digest: "d1", LoadedAt: "2024-01-01T00:00:00Z", Assignments: 5, Excluded: 2, Modules: 4, CourseYears: 3}

	tests := []struct {
		name       string
		method     string
		path       string
		setup      func(m *MockChartService)
		wantStatus int
		wantType   string
	}{
		{
			name:       "info",
			method:     http.MethodGet,
			path:       "/api/snapshot",
			setup:      func(m *MockChartService) { m.On("Snapshot").Return(info, nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "reload",
			method:     http.MethodPost,
			path:       "/api/snapshot/reload",
			setup:      func(m *MockChartService) { m.On("Reload").Return(info, nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "reload timed out",
			method:     http.MethodPost,
			path:       "/api/snapshot/reload",
			setup:      func(m *MockChartService) { m.On("Reload").Return(services.SnapshotInfo{}, context.DeadlineExceeded) },
			wantStatus: http.StatusGatewayTimeout,
			wantType:   apierrors.TypeTimeout,
		},
		{
			name:       "reload needs post",
			method:     http.MethodGet,
			path:       "/api/snapshot/reload",
			setup:      func(m *MockChartService) {},
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := newTestRouter(t)
			tt.setup(svc.chart)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, decodeBody(t, rec)["type"])
				return
			}
			if tt.wantStatus == http.StatusOK {
				body := decodeBody(t, rec)
				assert.Equal(t, "d1", body["digest"])
				assert.EqualValues(t, 5, body["assignments"])
			}
		})
	}
}
