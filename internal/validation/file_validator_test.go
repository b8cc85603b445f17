package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markscope/internal/shared/testutil"
)

func TestFileValidator_ValidateDataFile(t *testing.T) {
	tests := []struct {
		name          string
		setupFunc     func(t *testing.T) string
		wantErr       bool
		wantMissing   bool
		errorContains string
	}{
		{
			name: "valid json file",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteSampleData(t).Assignments
			},
		},
		{
			name: "missing file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "me.json")
			},
			wantErr:     true,
			wantMissing: true,
		},
		{
			name: "directory",
			setupFunc: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "assignments.json")
				require.NoError(t, os.Mkdir(dir, 0755))
				return dir
			},
			wantErr:       true,
			errorContains: "is a directory",
		},
		{
			name: "wrong extension",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "assignments.csv")
				require.NoError(t, os.WriteFile(file, []byte("{}"), 0644))
				return file
			},
			wantErr:       true,
			errorContains: "not a JSON file",
		},
		{
			name: "empty file",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "assignments.json")
				require.NoError(t, os.WriteFile(file, nil, 0644))
				return file
			},
			wantErr:       true,
			errorContains: "is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			v := NewFileValidator(logger)

			err := v.ValidateDataFile(tt.setupFunc(t))

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMissing, IsMissing(err))
			if tt.errorContains != "" {
				assert.Contains(t, err.Error(), tt.errorContains)
			}
		})
	}
}

func TestFileValidator_ValidateDataFiles(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	v := NewFileValidator(logger)
	files := testutil.WriteSampleData(t)

	require.NoError(t, v.ValidateDataFiles(files.Assignments, files.Member))
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "Data files validated")
	testutil.AssertNoErrors(t, handler)

	require.NoError(t, os.Remove(files.Member))
	err := v.ValidateDataFiles(files.Assignments, files.Member)
	assert.True(t, IsMissing(err))
	assert.Contains(t, err.Error(), "me.json")
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(nil)

	t.Run("creates nested directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "exports", "2024")
		require.NoError(t, v.ValidateOutputDirectory(dir))
		assert.DirExists(t, dir)
		assert.NoFileExists(t, filepath.Join(dir, ".write_test"))
	})

	t.Run("path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "exports")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		assert.Error(t, v.ValidateOutputDirectory(file))
	})
}

func TestIsMissing(t *testing.T) {
	assert.False(t, IsMissing(nil))
	assert.False(t, IsMissing(fmt.Errorf("boom")))
	assert.True(t, IsMissing(fmt.Errorf("wrapped: %w", os.ErrNotExist)))
}
