package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute application paths
type Paths struct {
	BaseDir         string
	DataDir         string
	AssignmentsFile string
	MemberFile      string
	ExportDir       string
	LogsDir         string
}

// ExecutableDir returns the directory of the running executable with symlinks
// resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return filepath.Dir(exe), nil
}

// ResolvePaths resolves cfg against base. Data files are relative to the data
// directory; the other directories are relative to base.
//
//	base/
//	  ├── data/
//	  │   ├── assignments.json
//	  │   └── me.json
//	  ├── exports/
//	  └── logs/
func ResolvePaths(base string, cfg PathsConfig) *Paths {
	dataDir := under(base, cfg.DataDir)
	return &Paths{
		BaseDir:         base,
		DataDir:         dataDir,
		AssignmentsFile: under(dataDir, cfg.AssignmentsFile),
		MemberFile:      under(dataDir, cfg.MemberFile),
		ExportDir:       under(base, cfg.ExportDir),
		LogsDir:         under(base, cfg.LogsDir),
	}
}

func under(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// EnsureDirectories creates the directories the application writes to. The
// data directory is only ever read and is left alone.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.ExportDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetExportPath returns the path for an exported file
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportDir, filename)
}

// LogPathResolution logs the resolved paths
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("exports", p.ExportDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("data_files",
			slog.String("assignments", p.AssignmentsFile),
			slog.Bool("assignments_exists", FileExists(p.AssignmentsFile)),
			slog.String("member", p.MemberFile),
			slog.Bool("member_exists", FileExists(p.MemberFile)),
		))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
