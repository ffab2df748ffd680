// =============================================================================
// Sales Receipt Reconciler - File Manager Utility
// =============================================================================
//
// This module provides the file handling around a run:
//   - Directory management
//   - Input discovery
//   - Input archival
//   - Output file naming
//   - Run summary logs
//
// ARCHIVAL STRATEGY:
//   - Input files are copied into the archive directory, never moved
//   - Archived copies are prefixed with the run id
//   - Archives can be split into date based subdirectories
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for a run.
type FileManager struct {
	// InputDir is searched when no input file is given.
	InputDir string

	// OutputDir receives workbooks and summary logs.
	OutputDir string

	// ArchiveDir receives copies of the input files.
	ArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: archive/2024/01/15/<run>_orders.csv
	UseTimestampSubdirs bool

	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

// NewFileManager creates a FileManager for the given directories.
func NewFileManager(inputDir, outputDir, archiveDir string) *FileManager {
	return &FileManager{
		InputDir:            inputDir,
		OutputDir:           outputDir,
		ArchiveDir:          archiveDir,
		UseTimestampSubdirs: true,
		Now:                 time.Now,
	}
}

// CurrentTime returns the manager's clock reading.
func (fm *FileManager) CurrentTime() time.Time {
	if fm.Now == nil {
		return time.Now()
	}
	return fm.Now()
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and archive directories if they don't
// exist. Empty paths are skipped.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.ArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the files of the input directory matching any of
// the glob patterns, newest first.
//
// PARAMETERS:
//   - patterns: Glob patterns such as "*.csv". Defaults to "*.csv" and
//     "*.xlsx".
//
// RETURNS:
//   - The matching file paths.
//   - An error if a pattern is malformed.
func (fm *FileManager) DiscoverInputFiles(patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.csv", "*.xlsx"}
	}

	type found struct {
		path    string
		modTime time.Time
	}
	var files []found
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to scan input directory: %w", err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() || seen[match] {
				continue
			}
			seen[match] = true
			files = append(files, found{path: match, modTime: info.ModTime()})
		}
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	result := make([]string, len(files))
	for i, f := range files {
		result[i] = f.path
	}
	return result, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile copies an input file into the archive directory.
//
// PARAMETERS:
//   - runID: Prefixed to the archived file name.
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived copy.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(runID, filePath string) (string, error) {
	archivePath := fm.archivePath(runID, filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

func (fm *FileManager) archivePath(runID, filePath string) string {
	fileName := filepath.Base(filePath)
	if runID != "" {
		fileName = runID + "_" + fileName
	}

	if fm.UseTimestampSubdirs {
		now := fm.CurrentTime()
		return filepath.Join(
			fm.ArchiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(fm.ArchiveDir, fileName)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands an output name format.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//               {kind}      - Run kind ("import" or "tieout"), from params
//               {run}       - Run id, from params
//   - params: Extra placeholder values, keyed without braces.
//
// RETURNS:
//   - The generated file name, always ending in .xlsx.
//
// EXAMPLE:
//   format: "{kind}_{timestamp}.xlsx"
//   params: {"kind": "import"}
//   output: "import_20240115_143022.xlsx"
func (fm *FileManager) GenerateOutputFileName(format string, params map[string]string) string {
	now := fm.CurrentTime()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xlsx") {
		result += ".xlsx"
	}

	return result
}

// OutputPath joins a file name onto the output directory.
func (fm *FileManager) OutputPath(fileName string) string {
	return filepath.Join(fm.OutputDir, fileName)
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about one run.
type RunSummary struct {
	RunID     string
	Kind      string
	StartTime time.Time
	EndTime   time.Time

	Inputs  []string
	Outputs []string

	// Stats are printed in order as "label: value".
	Stats []SummaryStat

	Warnings []string
}

// SummaryStat is one labelled counter of a run summary.
type SummaryStat struct {
	Label string
	Value interface{}
}

// AddStat appends a counter.
func (s *RunSummary) AddStat(label string, value interface{}) {
	s.Stats = append(s.Stats, SummaryStat{Label: label, Value: value})
}

// WriteSummaryLog writes a run summary to the output directory.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func (fm *FileManager) WriteSummaryLog(summary RunSummary) (string, error) {
	summaryFileName := fmt.Sprintf("run_summary_%s_%s.txt", summary.Kind, summary.StartTime.Format("20060102_150405"))
	summaryPath := filepath.Join(fm.OutputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	rule := strings.Repeat("=", 80) + "\n"
	thin := strings.Repeat("-", 80) + "\n"

	fmt.Fprintf(writer, "Sales Receipt Reconciler - Run Summary\n%s\n", rule)
	fmt.Fprintf(writer, "Run Information:\n"+
		"  Run ID:     %s\n"+
		"  Kind:       %s\n"+
		"  Start Time: %s\n"+
		"  End Time:   %s\n"+
		"  Duration:   %s\n\n",
		summary.RunID,
		summary.Kind,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String())

	if len(summary.Stats) > 0 {
		width := 0
		for _, stat := range summary.Stats {
			if len(stat.Label) > width {
				width = len(stat.Label)
			}
		}
		writer.WriteString("Statistics:\n")
		for _, stat := range summary.Stats {
			fmt.Fprintf(writer, "  %-*s %v\n", width+1, stat.Label+":", stat.Value)
		}
		writer.WriteString("\n")
	}

	writeList(writer, "Inputs", thin, summary.Inputs)
	writeList(writer, "Outputs", thin, summary.Outputs)
	writeList(writer, "Warnings", thin, summary.Warnings)

	writer.WriteString(rule + "End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

func writeList(w *bufio.Writer, title, rule string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n%s", title, rule)
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
	w.WriteString("\n")
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
