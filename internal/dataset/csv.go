package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"txtinspect/internal/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// ErrMissingColumn is returned when a required column is absent from the header
var ErrMissingColumn = errors.New("missing required column")

// ExportFileName is the download name used for exported datasets
const ExportFileName = "modified_df.csv"

// ExportContentType is the MIME type of exported datasets
const ExportContentType = "text/csv"

// LoadStats describes what the lenient reader skipped
type LoadStats struct {
	Rows        int `json:"rows"`
	DroppedRows int `json:"dropped_rows"`
	PaddedRows  int `json:"padded_rows"`
}

// Load reads a CSV dataset. Ill-formed UTF-8 bytes are dropped, rows with
// more fields than the header are skipped and short rows are padded.
// The header must contain the text, sentiment and topics columns.
func Load(r io.Reader) (*models.Dataset, LoadStats, error) {
	var stats LoadStats

	reader := csv.NewReader(transform.NewReader(r, dropIllFormed()))
	// Allow variable number of fields per record to handle corrupted CSV files
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, stats, fmt.Errorf("empty csv: %w", ErrMissingColumn)
		}
		return nil, stats, fmt.Errorf("failed to read header: %w", err)
	}
	header = NormalizeHeaders(header)

	// Required columns match on the trimmed name; the first match wins
	columns := make([]string, len(header))
	textIdx, sentimentIdx, topicsIdx := -1, -1, -1
	var extraIdx []int
	var extraCols []string
	for i, col := range header {
		columns[i] = col
		switch key := strings.TrimSpace(col); {
		case key == models.ColumnText && textIdx < 0:
			textIdx = i
			columns[i] = key
		case key == models.ColumnSentiment && sentimentIdx < 0:
			sentimentIdx = i
			columns[i] = key
		case key == models.ColumnTopics && topicsIdx < 0:
			topicsIdx = i
			columns[i] = key
		default:
			extraIdx = append(extraIdx, i)
			extraCols = append(extraCols, col)
		}
	}

	required := []struct {
		name string
		idx  int
	}{
		{models.ColumnText, textIdx},
		{models.ColumnSentiment, sentimentIdx},
		{models.ColumnTopics, topicsIdx},
	}
	for _, col := range required {
		if col.idx < 0 {
			return nil, stats, fmt.Errorf("%w: %s", ErrMissingColumn, col.name)
		}
	}

	ds := &models.Dataset{
		Columns:      columns,
		Header:       header,
		ExtraColumns: extraCols,
		Records:      []models.Record{},
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Continue reading even if there's an error, as long as we got a record
			if row == nil {
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					stats.DroppedRows++
					continue
				}
				return nil, stats, fmt.Errorf("failed to read row: %w", err)
			}
		}

		if len(row) > len(header) {
			stats.DroppedRows++
			continue
		}
		if len(row) < len(header) {
			// Blank lines are skipped by encoding/csv, so a short row is a real row
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
			stats.PaddedRows++
		}

		rec := models.Record{
			Text:      row[textIdx],
			Sentiment: row[sentimentIdx],
			Topics:    row[topicsIdx],
		}
		if len(extraIdx) > 0 {
			rec.Extra = make([]string, len(extraIdx))
			for j, idx := range extraIdx {
				rec.Extra[j] = row[idx]
			}
		}
		ds.Records = append(ds.Records, rec)
	}

	stats.Rows = len(ds.Records)
	return ds, stats, nil
}

// Write serializes a dataset as UTF-8 CSV with a header row and no index column.
func Write(w io.Writer, ds *models.Dataset) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ds.ExportHeader()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range ds.Records {
		if err := writer.Write(ds.Row(rec)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Encode returns the CSV encoding of a dataset
func Encode(ds *models.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NormalizeHeaders strips a leading byte order mark, names blank columns
// "Unnamed: <i>" and suffixes repeated names with ".1", ".2", ... so that
// every column is addressable. Other whitespace is kept as uploaded.
//
// Example:
//
//	Input:  ["text", "", "text", " sentiment "]
//	Output: ["text", "Unnamed: 1", "text.1", " sentiment "]
func NormalizeHeaders(header []string) []string {
	normalized := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	dupes := make(map[string]int)

	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.TrimSpace(h) == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for seen[name] {
			dupes[h]++
			name = h + "." + strconv.Itoa(dupes[h])
		}
		seen[name] = true
		normalized[i] = name
	}

	return normalized
}

// dropIllFormed removes bytes that are not valid UTF-8.
// The runes transformer hands ill-formed input to the predicate as RuneError.
func dropIllFormed() transform.Transformer {
	return runes.Remove(runes.Predicate(func(r rune) bool {
		return r == utf8.RuneError
	}))
}
