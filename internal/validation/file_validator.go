package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// MaxDataFileSize bounds an input collection. Exports of a whole degree are
// well under a megabyte.
const MaxDataFileSize = 64 << 20

// FileValidator checks the input collections before a snapshot load and the
// export directory before the first write.
type FileValidator struct {
	logger *slog.Logger
}

func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateDataFile checks an input collection: a readable, non-empty .json
// file no larger than MaxDataFileSize. A missing file wraps fs.ErrNotExist.
func (v *FileValidator) ValidateDataFile(path string) error {
	if err := checkDataFile(path); err != nil {
		v.logger.Error("Invalid data file", slog.String("file", path), slog.String("error", err.Error()))
		return err
	}
	return nil
}

func checkDataFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return fmt.Errorf("data file %s: %w", path, err)
	case info.IsDir():
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	if ext := filepath.Ext(path); !strings.EqualFold(ext, ".json") {
		return fmt.Errorf("data file %s is not a JSON file (extension %q)", path, ext)
	}
	if info.Size() == 0 {
		return fmt.Errorf("data file %s is empty", path)
	}
	if info.Size() > MaxDataFileSize {
		return fmt.Errorf("data file %s is %d bytes, limit is %d", path, info.Size(), int64(MaxDataFileSize))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("data file %s is not readable: %w", path, err)
	}
	return f.Close()
}

// ValidateDataFiles stops at the first invalid collection.
func (v *FileValidator) ValidateDataFiles(paths ...string) error {
	for _, path := range paths {
		if err := v.ValidateDataFile(path); err != nil {
			return err
		}
	}
	v.logger.Info("Data files validated", slog.Int("files", len(paths)))
	return nil
}

// ValidateOutputDirectory creates dir if needed and proves it writable with a
// probe file that is removed again.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Output directory unavailable", slog.String("directory", dir), slog.String("error", err.Error()))
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		v.logger.Error("Output directory is not writable", slog.String("directory", dir), slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// IsMissing reports whether err came from a file that does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
