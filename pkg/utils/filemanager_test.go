package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, time.January, 15, 14, 30, 22, 0, time.UTC)

func newTestFileManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(filepath.Join(root, "input"), filepath.Join(root, "output"), filepath.Join(root, "archive"))
	fm.Now = func() time.Time { return fixedTime }
	require.NoError(t, os.MkdirAll(fm.InputDir, 0755))
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func TestGenerateOutputFileName(t *testing.T) {
	fm := newTestFileManager(t)

	name := fm.GenerateOutputFileName("{kind}_{timestamp}.xlsx", map[string]string{"kind": "import"})
	assert.Equal(t, "import_20240115_143022.xlsx", name)

	name = fm.GenerateOutputFileName("{kind}_{run}_{date}", map[string]string{"kind": "tieout", "run": "abc"})
	assert.Equal(t, "tieout_abc_20240115.xlsx", name)

	name = fm.GenerateOutputFileName("{uuid}", nil)
	assert.Len(t, strings.TrimSuffix(name, ".xlsx"), 36)
}

func TestArchiveInputFileCopies(t *testing.T) {
	fm := newTestFileManager(t)
	input := filepath.Join(fm.InputDir, "orders.csv")
	require.NoError(t, os.WriteFile(input, []byte("a,b\n1,2\n"), 0644))

	archived, err := fm.ArchiveInputFile("run1", input)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(fm.ArchiveDir, "2024", "01", "15", "run1_orders.csv"), archived)
	assert.True(t, FileExists(input), "inputs are copied, not moved")

	data, err := os.ReadFile(archived)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestArchiveWithoutSubdirs(t *testing.T) {
	fm := newTestFileManager(t)
	fm.UseTimestampSubdirs = false
	input := filepath.Join(fm.InputDir, "qb.xlsx")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0644))

	archived, err := fm.ArchiveInputFile("", input)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.ArchiveDir, "qb.xlsx"), archived)
}

func TestDiscoverInputFilesNewestFirst(t *testing.T) {
	fm := newTestFileManager(t)
	older := filepath.Join(fm.InputDir, "old.csv")
	newer := filepath.Join(fm.InputDir, "new.xlsx")
	ignored := filepath.Join(fm.InputDir, "notes.txt")
	for _, p := range []string{older, newer, ignored} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
	require.NoError(t, os.Chtimes(older, fixedTime, fixedTime))
	require.NoError(t, os.Chtimes(newer, fixedTime.Add(time.Hour), fixedTime.Add(time.Hour)))

	files, err := fm.DiscoverInputFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{newer, older}, files)
}

func TestWriteSummaryLog(t *testing.T) {
	fm := newTestFileManager(t)
	summary := RunSummary{
		RunID:     "run1",
		Kind:      "import",
		StartTime: fixedTime,
		EndTime:   fixedTime.Add(2 * time.Second),
		Inputs:    []string{"orders.csv"},
		Outputs:   []string{"import.xlsx"},
		Warnings:  []string{"fee source unavailable"},
	}
	summary.AddStat("Sales rows", 12)
	summary.AddStat("Validation errors", 1)

	path, err := fm.WriteSummaryLog(summary)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputDir, "run_summary_import_20240115_143022.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Run ID:     run1")
	assert.Contains(t, text, "Duration:   2s")
	assert.Contains(t, text, "  Sales rows:"+strings.Repeat(" ", 8)+"12\n")
	assert.Contains(t, text, "  Validation errors: 1\n")
	assert.Contains(t, text, "fee source unavailable")
}
