// Command render writes every chart page and the mark exports to the export
// directory without starting the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"markscope/internal/app"
	"markscope/internal/charts"
	"markscope/internal/config"
	"markscope/internal/infrastructure"
	rendering "markscope/internal/render"
	"markscope/internal/services"
	"markscope/internal/validation"
)

func main() {
	configFile := flag.String("config", "", "path to config.yaml (defaults to the executable directory)")
	formats := flag.String("format", "png", "comma separated image formats: png, svg")
	width := flag.Int("width", 0, "image width, 100 to 4096 (defaults to charts.width)")
	height := flag.Int("height", 0, "image height, 100 to 4096 (defaults to charts.height)")
	skipExport := flag.Bool("skip-export", false, "only render chart images")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFrom(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		slog.Error("Failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging, paths.LogsDir)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One trace ID for every line of the run
	ctx = infrastructure.EnsureTraceID(ctx)
	logger = infrastructure.LoggerWithContext(ctx)

	opts := renderOptions{
		Formats:    strings.Split(*formats, ","),
		Size:       rendering.Size{Width: *width, Height: *height},
		SkipExport: *skipExport,
	}
	written, err := run(ctx, cfg, paths, logger, opts)
	if err != nil {
		logger.Error("Render failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, path := range written {
		fmt.Println(path)
	}
}

type renderOptions struct {
	Formats    []string
	Size       rendering.Size
	SkipExport bool
}

// run renders every page in every format and, unless skipped, saves the
// workbook and CSV tables. It returns the files written.
func run(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger, opts renderOptions) ([]string, error) {
	if err := opts.Size.Validate(); err != nil {
		return nil, err
	}

	formats := make([]string, 0, len(opts.Formats))
	for _, f := range opts.Formats {
		format, err := rendering.ParseFormat(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		formats = append(formats, string(format))
	}

	files := validation.NewFileValidator(logger)
	if err := files.ValidateDataFiles(paths.AssignmentsFile, paths.MemberFile); err != nil {
		return nil, err
	}
	if err := files.ValidateOutputDirectory(paths.ExportDir); err != nil {
		return nil, err
	}

	// Offline runs never share a cache
	cfg.Cache.Enabled = false
	providers := infrastructure.NoopProviders(logger)
	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}
	svc := app.BuildServices(ctx, cfg, paths, logger, providers, metrics)
	defer svc.Cache.Close()

	// Parse once before fanning out
	if _, err := svc.Chart.Snapshot(ctx); err != nil {
		return nil, err
	}

	written, err := renderPages(ctx, svc.Chart, paths, formats, opts.Size, logger)
	if err != nil {
		return written, err
	}

	if !opts.SkipExport {
		exported, err := svc.Export.SaveAll(ctx)
		written = append(written, exported...)
		if err != nil {
			return written, err
		}
	}

	logger.InfoContext(ctx, "Render complete",
		slog.String("dir", paths.ExportDir),
		slog.Int("files", len(written)))
	return written, nil
}

func renderPages(ctx context.Context, chart *services.ChartService, paths *config.Paths, formats []string, size rendering.Size, logger *slog.Logger) ([]string, error) {
	pages := charts.Pages()
	written := make([]string, len(pages)*len(formats))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, page := range pages {
		for j, format := range formats {
			slot := i*len(formats) + j
			g.Go(func() error {
				img, err := chart.Image(ctx, page.String(), format, size)
				if err != nil {
					return fmt.Errorf("page %d (%s): %w", page.Number(), format, err)
				}

				path := paths.GetExportPath(fmt.Sprintf("p%d-%s", page.Number(), img.Filename))
				if err := os.WriteFile(path, img.Data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}

				logger.DebugContext(ctx, "Chart written",
					slog.String("page", page.String()),
					slog.String("format", format),
					slog.Int("bytes", len(img.Data)))
				written[slot] = path
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return compact(written), err
	}
	return written, nil
}

func compact(paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
