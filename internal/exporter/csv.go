package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"markscope/internal/config"
)

// utf8BOM makes Excel read the files as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter saves tables under the export directory.
type CSVWriter struct {
	paths *config.Paths
}

func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteTable replaces filePath with t. The file is written beside its target
// and renamed into place, so readers never see a partial export. Relative
// paths are resolved against the export directory.
func (w *CSVWriter) WriteTable(filePath string, t Table) (err error) {
	target := w.resolvePath(filePath)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", filePath, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = EncodeTable(tmp, t); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filePath, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", filePath, err)
	}
	return os.Rename(tmp.Name(), target)
}

// EncodeTable streams t as CSV to out, prefixed with a UTF-8 BOM.
func EncodeTable(out io.Writer, t Table) error {
	if _, err := out.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(out)
	if len(t.Headers) > 0 {
		if err := cw.Write(t.Headers); err != nil {
			return fmt.Errorf("write headers: %w", err)
		}
	}
	for i, row := range t.Rows {
		if err := cw.Write(formatRow(row)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return w.paths.GetExportPath(filePath)
}
