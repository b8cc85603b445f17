package http

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"markscope/internal/charts"
	apierrors "markscope/internal/errors"
	"markscope/internal/middleware"
	"markscope/internal/render"
	"markscope/internal/services"
	"markscope/internal/shared/testutil"
)

// MockChartService is a mock implementation of ChartServiceInterface
type MockChartService struct {
	mock.Mock
}

func (m *MockChartService) Pages() []services.PageInfo {
	args := m.Called()
	return args.Get(0).([]services.PageInfo)
}

func (m *MockChartService) Chart(ctx context.Context, ref string) (*charts.Chart, string, error) {
	args := m.Called(ref)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*charts.Chart), args.String(1), args.Error(2)
}

func (m *MockChartService) Image(ctx context.Context, ref, format string, size render.Size) (*services.Image, error) {
	args := m.Called(ref, format, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Image), args.Error(1)
}

func (m *MockChartService) WritePage(ctx context.Context, w io.Writer, ref string) error {
	args := m.Called(ref)
	if body := args.String(0); body != "" {
		io.WriteString(w, body)
	}
	return args.Error(1)
}

func (m *MockChartService) Snapshot(ctx context.Context) (services.SnapshotInfo, error) {
	args := m.Called()
	return args.Get(0).(services.SnapshotInfo), args.Error(1)
}

func (m *MockChartService) Reload(ctx context.Context) (services.SnapshotInfo, error) {
	args := m.Called()
	return args.Get(0).(services.SnapshotInfo), args.Error(1)
}

// MockExportService is a mock implementation of ExportServiceInterface
type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) WriteWorkbook(ctx context.Context, w io.Writer) error {
	args := m.Called()
	if body := args.String(0); body != "" {
		io.WriteString(w, body)
	}
	return args.Error(1)
}

func (m *MockExportService) WriteCSV(ctx context.Context, w io.Writer, table string) error {
	args := m.Called(table)
	if body := args.String(0); body != "" {
		io.WriteString(w, body)
	}
	return args.Error(1)
}

// MockHealthService is a mock implementation of HealthServiceInterface
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) Version() map[string]interface{} {
	return m.Called().Get(0).(map[string]interface{})
}

type testServices struct {
	chart  *MockChartService
	export *MockExportService
	health *MockHealthService
}

// newTestRouter mounts every handler the way the application does.
func newTestRouter(t *testing.T) (http.Handler, testServices) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)

	svc := testServices{
		chart:  new(MockChartService),
		export: new(MockExportService),
		health: new(MockHealthService),
	}

	chartHandler := NewChartHandler(svc.chart, middleware.NewValidationMiddleware(logger, errorHandler), logger, errorHandler)
	healthHandler := NewHealthHandler(svc.health, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	NewPageHandler(svc.chart, logger, errorHandler).Routes(r)
	r.Route("/api", func(r chi.Router) {
		r.Get("/pages", chartHandler.ListPages)
		r.Mount("/charts", chartHandler.Routes())
		r.Mount("/export", NewExportHandler(svc.export, middleware.NewQueryParamValidator(logger, errorHandler), logger, errorHandler).Routes())
		r.Mount("/snapshot", NewSnapshotHandler(svc.chart, logger, errorHandler).Routes())
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
	})

	t.Cleanup(func() {
		svc.chart.AssertExpectations(t)
		svc.export.AssertExpectations(t)
		svc.health.AssertExpectations(t)
	})
	return r, svc
}
