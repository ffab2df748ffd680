// =============================================================================
// Sales Receipt Reconciler - CSV Parser Module
// =============================================================================
//
// This module reads CSV exports (order ledgers, fee exports, accounting and
// tax reports) into a types.Table. It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Legacy encodings (Windows-1252, ISO-8859-1 and any WHATWG label)
//   - A UTF-8 byte order mark
//   - Ragged rows and lazy quoting
//
// Values are kept as text. Interpreting amounts is the normalizer's job.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/sales-receipt-reconciler/internal/config"
	"github.com/ginjaninja78/sales-receipt-reconciler/internal/types"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file into a table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV settings from the main configuration.
//
// RETURNS:
//   - The parsed table. Its name is the file's base name without extension.
//   - An error if the file cannot be read, decoded or parsed.
func Parse(filePath string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	table, err := ParseReader(file, name, settings)
	if err != nil {
		return nil, err
	}
	table.SourceFile = filePath

	return table, nil
}

// ParseReader reads CSV data from r.
//
// PARSING PROCESS:
//  1. Wrap the reader in a decoder for the configured encoding
//  2. Configure the CSV reader with the configured delimiter
//  3. Take the first row as the header row
//  4. Convert each non-empty data row to a map of header -> value
func ParseReader(r io.Reader, name string, settings config.CSVSettings) (*types.Table, error) {
	decoder, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(transform.NewReader(bufio.NewReader(r), decoder))
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers := cleanHeaders(allRows[0])

	return &types.Table{
		Name:    name,
		Headers: headers,
		Rows:    extractDataRows(allRows[1:], headers),
	}, nil
}

// decoderFor returns the transformer that turns the configured encoding into
// UTF-8.
func decoderFor(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder(), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return enc.NewDecoder(), nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Exports are frequently ragged.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// cleanHeaders trims header values and names blank headers by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// extractDataRows converts data rows to maps. Rows with no values are
// skipped; short rows get empty values for missing columns.
func extractDataRows(rows [][]string, headers []string) []map[string]string {
	dataRows := make([]map[string]string, 0, len(rows))

	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(headers))
		for colIndex, header := range headers {
			if colIndex < len(row) {
				rowMap[header] = strings.TrimSpace(row[colIndex])
			} else {
				rowMap[header] = ""
			}
		}

		dataRows = append(dataRows, rowMap)
	}

	return dataRows
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
