package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"markscope/internal/charts"
	"markscope/internal/chartcache"
	"markscope/internal/infrastructure"
	"markscope/internal/render"
	"markscope/internal/snapshot"
)

// PageInfo describes one navigable chart page.
type PageInfo struct {
	Number int    `json:"number"`
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Path   string `json:"path"`
}

// Image is a rendered chart image.
type Image struct {
	Data        []byte
	ContentType string
	ETag        string
	Filename    string
	Cached      bool
}

// ChartServiceOption configures a ChartService.
type ChartServiceOption func(*ChartService)

// WithCache stores rendered images in store for ttl.
func WithCache(store chartcache.Store, ttl time.Duration) ChartServiceOption {
	return func(s *ChartService) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

// WithMetrics records render and cache metrics.
func WithMetrics(m *infrastructure.BusinessMetrics) ChartServiceOption {
	return func(s *ChartService) { s.metrics = m }
}

// ChartService assembles and renders chart pages from the current snapshot.
type ChartService struct {
	source    SnapshotSource
	assembler *charts.Assembler
	renderer  *render.Renderer
	cache     chartcache.Store
	cacheTTL  time.Duration
	metrics   *infrastructure.BusinessMetrics
	renders   singleflight.Group
	logger    *slog.Logger
}

// NewChartService creates a chart service.
func NewChartService(source SnapshotSource, assembler *charts.Assembler, renderer *render.Renderer, logger *slog.Logger, opts ...ChartServiceOption) *ChartService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ChartService{
		source:    source,
		assembler: assembler,
		renderer:  renderer,
		logger:    infrastructure.WithComponent(logger, "chart_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pages lists every chart page in navigation order.
func (s *ChartService) Pages() []PageInfo {
	pages := charts.Pages()
	out := make([]PageInfo, len(pages))
	for i, p := range pages {
		out[i] = PageInfo{
			Number: p.Number(),
			Slug:   p.String(),
			Title:  p.Title(),
			Path:   fmt.Sprintf("/p%d", p.Number()),
		}
	}
	return out
}

// Chart assembles the page named by ref, a number or slug. The returned ETag
// changes whenever the snapshot does.
func (s *ChartService) Chart(ctx context.Context, ref string) (*charts.Chart, string, error) {
	page, err := charts.ParsePage(ref)
	if err != nil {
		return nil, "", err
	}

	snap, err := s.source.Get(ctx)
	if err != nil {
		return nil, "", err
	}

	chart, err := s.assembler.Assemble(ctx, page, snap)
	if err != nil {
		return nil, "", err
	}
	return chart, etag(snap.Digest, page.String(), "json"), nil
}

// Image renders the page named by ref as one composite image. An empty format
// means PNG and a zero size means the renderer default.
func (s *ChartService) Image(ctx context.Context, ref, format string, size render.Size) (*Image, error) {
	page, err := charts.ParsePage(ref)
	if err != nil {
		return nil, err
	}
	f, err := render.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	size = size.Or(s.renderer.Size())

	snap, err := s.source.Get(ctx)
	if err != nil {
		return nil, err
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"chart.page":   page.String(),
		"chart.format": string(f),
		"chart.width":  size.Width,
		"chart.height": size.Height,
	})

	key := chartcache.Key(snap.Digest, page.String(), string(f), size.Width, size.Height)
	img := &Image{
		ContentType: f.ContentType(),
		ETag:        etag(snap.Digest, page.String(), fmt.Sprintf("%s-%dx%d", f, size.Width, size.Height)),
		Filename:    fmt.Sprintf("%s.%s", page, f.Ext()),
	}

	if data, ok := s.cached(ctx, key); ok {
		img.Data = data
		img.Cached = true
		return img, nil
	}

	v, err, _ := s.renders.Do(key, func() (interface{}, error) {
		start := time.Now()
		data, err := s.renderImage(ctx, page, snap, f, size)
		infrastructure.RecordChartRender(ctx, s.metrics, page.String(), string(f), time.Since(start), err)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	img.Data = v.([]byte)
	return img, nil
}

// WritePage writes the HTML page named by ref to w.
func (s *ChartService) WritePage(ctx context.Context, w io.Writer, ref string) error {
	page, err := charts.ParsePage(ref)
	if err != nil {
		return err
	}

	snap, err := s.source.Get(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	chart, err := s.assembler.Assemble(ctx, page, snap)
	if err == nil {
		err = s.renderer.Page(ctx, w, chart)
	}
	infrastructure.RecordChartRender(ctx, s.metrics, page.String(), "html", time.Since(start), err)
	return err
}

// Snapshot loads the snapshot if needed and describes it.
func (s *ChartService) Snapshot(ctx context.Context) (SnapshotInfo, error) {
	snap, err := s.source.Get(ctx)
	if err != nil {
		return SnapshotInfo{}, err
	}
	return infoOf(snap), nil
}

// Reload rereads the source collections. Cached images keyed by the previous
// digest are never served again.
func (s *ChartService) Reload(ctx context.Context) (SnapshotInfo, error) {
	snap, err := s.source.Reload(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot reload failed", slog.String("error", err.Error()))
		return SnapshotInfo{}, err
	}

	info := infoOf(snap)
	s.logger.InfoContext(ctx, "snapshot reloaded",
		slog.String("digest", info.Digest),
		slog.Int("assignments", info.Assignments))
	return info, nil
}

func (s *ChartService) renderImage(ctx context.Context, page charts.Page, snap *snapshot.Snapshot, f render.Format, size render.Size) ([]byte, error) {
	chart, err := s.assembler.Assemble(ctx, page, snap)
	if err != nil {
		return nil, err
	}
	return s.renderer.Image(ctx, chart, size, f)
}

func (s *ChartService) cached(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		infrastructure.RecordCacheLookup(ctx, s.metrics, true)
		infrastructure.AddSpanEvent(ctx, "chart.cache_hit", map[string]interface{}{"bytes": len(data)})
		return data, true
	case errors.Is(err, chartcache.ErrCacheMiss):
	default:
		infrastructure.WithError(s.logger, err).WarnContext(ctx, "chart cache read failed",
			slog.String("key", key))
	}
	infrastructure.RecordCacheLookup(ctx, s.metrics, false)
	return nil, false
}

func (s *ChartService) store(ctx context.Context, key string, data []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		infrastructure.WithError(s.logger, err).WarnContext(ctx, "chart cache write failed",
			slog.String("key", key))
	}
}

func etag(digest, page, variant string) string {
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return fmt.Sprintf(`"%s-%s-%s"`, digest, page, variant)
}
