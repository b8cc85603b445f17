package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markscope/internal/config"
)

func setupTestEnv(t *testing.T) (*CSVWriter, string) {
	t.Helper()
	dir := t.TempDir()
	return NewCSVWriter(&config.Paths{ExportDir: filepath.Join(dir, "exports")}), dir
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, utf8BOM), "missing BOM")
	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	return records
}

func TestEncodeTable_Quoting(t *testing.T) {
	tests := []struct {
		name     string
		table    Table
		expected string
	}{
		{
			name:     "headers and rows",
			table:    Table{Headers: []string{"code", "mark"}, Rows: [][]interface{}{{"CS101", 64}, {"CS102", 71}}},
			expected: "code,mark\nCS101,64\nCS102,71\n",
		},
		{
			name:     "rows only",
			table:    Table{Rows: [][]interface{}{{"CS101", 64}}},
			expected: "CS101,64\n",
		},
		{
			name:     "special characters",
			table:    Table{Rows: [][]interface{}{{"Lab, part 1", `The "final" exam`}}},
			expected: "\"Lab, part 1\",\"The \"\"final\"\" exam\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeTable(&buf, tt.table))
			assert.Equal(t, string(utf8BOM)+tt.expected, buf.String())
		})
	}
}

func TestCSVWriter_Replaces(t *testing.T) {
	writer, _ := setupTestEnv(t)

	first := Table{Headers: []string{"code", "mark"}, Rows: [][]interface{}{{"CS101", 64}, {"CS102", 71}}}
	second := Table{Headers: []string{"code", "mark"}, Rows: [][]interface{}{{"CS201", 58}}}
	require.NoError(t, writer.WriteTable("marks.csv", first))
	require.NoError(t, writer.WriteTable("marks.csv", second))

	data, err := os.ReadFile(writer.paths.GetExportPath("marks.csv"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"code", "mark"}, {"CS201", "58"}}, readCSV(t, data))

	entries, err := os.ReadDir(writer.paths.ExportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestCSVWriter_ResolvePath(t *testing.T) {
	writer, dir := setupTestEnv(t)

	abs := filepath.Join(dir, "elsewhere.csv")
	assert.Equal(t, abs, writer.resolvePath(abs))
	assert.Equal(t, filepath.Join(dir, "exports", "marks.csv"), writer.resolvePath("marks.csv"))
}

func TestCSVWriter_WriteTable(t *testing.T) {
	writer, _ := setupTestEnv(t)
	table := ModuleTable(sampleSnapshot(t))

	require.NoError(t, writer.WriteTable("modules.csv", table))

	data, err := os.ReadFile(writer.paths.GetExportPath("modules.csv"))
	require.NoError(t, err)
	records := readCSV(t, data)
	require.Len(t, records, 5)
	assert.Equal(t, moduleHeaders, records[0])
	assert.Equal(t, []string{"2021/22", "CS202", "Databases", ""}, records[4])
}

func TestEncodeTable(t *testing.T) {
	table, err := AssignmentTable(sampleSnapshot(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeTable(&buf, table))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 6)
	assert.Equal(t, []string{
		"2020/21", "CS101", "CS101 module", "Essay",
		"2020-10-10T12:00:00Z", "2020-10-09T12:00:00Z", "24.00", "64",
	}, records[1])
	assert.Equal(t, "", records[2][5])
}

func TestCSVWriter_ErrorScenarios(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	writer := NewCSVWriter(&config.Paths{ExportDir: filepath.Join(blocker, "exports")})
	err := writer.WriteTable("marks.csv", Table{Rows: [][]interface{}{{"a"}}})
	assert.Error(t, err)
}
