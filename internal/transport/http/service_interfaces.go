package http

import (
	"context"
	"io"
	"net/http"

	"markscope/internal/charts"
	"markscope/internal/render"
	"markscope/internal/services"
)

// ChartServiceInterface defines the chart operations the handlers need
type ChartServiceInterface interface {
	Pages() []services.PageInfo
	Chart(ctx context.Context, ref string) (*charts.Chart, string, error)
	Image(ctx context.Context, ref, format string, size render.Size) (*services.Image, error)
	WritePage(ctx context.Context, w io.Writer, ref string) error
	Snapshot(ctx context.Context) (services.SnapshotInfo, error)
	Reload(ctx context.Context) (services.SnapshotInfo, error)
}

// ExportServiceInterface defines the record export operations
type ExportServiceInterface interface {
	WriteWorkbook(ctx context.Context, w io.Writer) error
	WriteCSV(ctx context.Context, w io.Writer, table string) error
}

// HealthServiceInterface defines the health and version probes
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}

// StructValidator validates tagged request structs
type StructValidator interface {
	ValidateStruct(v interface{}) error
}

// QueryValidator checks a single query parameter and answers the request
// itself when the value is rejected
type QueryValidator interface {
	ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool)
}

var (
	_ ChartServiceInterface  = (*services.ChartService)(nil)
	_ ExportServiceInterface = (*services.ExportService)(nil)
	_ HealthServiceInterface = (*services.HealthService)(nil)
)
