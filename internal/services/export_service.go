package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"markscope/internal/config"
	"markscope/internal/exporter"
	"markscope/internal/snapshot"
)

// Export tables
const (
	TableAssignments = "assignments"
	TableModules     = "modules"
)

// WorkbookFilename is the name of the exported workbook.
const WorkbookFilename = "marks.xlsx"

// ExportService exports the current snapshot as a workbook or CSV tables.
type ExportService struct {
	source SnapshotSource
	paths  *config.Paths
	logger *slog.Logger
}

// NewExportService creates an export service writing files under paths.
func NewExportService(source SnapshotSource, paths *config.Paths, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		source: source,
		paths:  paths,
		logger: logger.With(slog.String("service", "export")),
	}
}

// WriteWorkbook streams the xlsx workbook to w.
func (s *ExportService) WriteWorkbook(ctx context.Context, w io.Writer) error {
	snap, err := s.source.Get(ctx)
	if err != nil {
		return err
	}
	return exporter.WriteWorkbook(w, snap)
}

// WriteCSV streams one table as CSV to w. An empty name selects the
// assignments table.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, table string) error {
	snap, err := s.source.Get(ctx)
	if err != nil {
		return err
	}

	t, err := tableFor(snap, table)
	if err != nil {
		return err
	}
	return exporter.EncodeTable(w, t)
}

// SaveAll writes the workbook and one CSV per table into the export directory
// and returns the paths written.
func (s *ExportService) SaveAll(ctx context.Context) ([]string, error) {
	snap, err := s.source.Get(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	workbook := s.paths.GetExportPath(WorkbookFilename)
	if err := exporter.SaveWorkbook(workbook, snap); err != nil {
		return nil, fmt.Errorf("failed to save workbook: %w", err)
	}
	written := []string{workbook}

	csv := exporter.NewCSVWriter(s.paths)
	for _, name := range []string{TableAssignments, TableModules} {
		t, err := tableFor(snap, name)
		if err != nil {
			return written, err
		}
		file := name + ".csv"
		if err := csv.WriteTable(file, t); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", file, err)
		}
		written = append(written, s.paths.GetExportPath(file))
	}

	s.logger.InfoContext(ctx, "export saved",
		slog.String("dir", s.paths.ExportDir),
		slog.Int("files", len(written)))
	return written, nil
}

func tableFor(snap *snapshot.Snapshot, name string) (exporter.Table, error) {
	switch strings.ToLower(name) {
	case "", TableAssignments:
		return exporter.AssignmentTable(snap)
	case TableModules:
		return exporter.ModuleTable(snap), nil
	default:
		return exporter.Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
}
