package summary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// columnIndex maps each known column to its position in a document, -1 when absent
type columnIndex map[string]int

func resolveHeader(header []string) columnIndex {
	idx := make(columnIndex, len(Columns))
	for _, c := range Columns {
		idx[c] = -1
	}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, known := idx[name]; known && idx[name] == -1 {
			idx[name] = i
		}
	}
	return idx
}

func (idx columnIndex) cell(record []string, col string) (string, bool) {
	i := idx[col]
	if i < 0 || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

func (idx columnIndex) text(record []string, col string) string {
	s, _ := idx.cell(record, col)
	return s
}

// count parses a counter cell; missing, blank and malformed values are 0
func (idx columnIndex) count(record []string, col string) int {
	s, _ := idx.cell(record, col)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func (idx columnIndex) optionalCount(record []string, col string) *int {
	s, ok := idx.cell(record, col)
	if !ok || s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		n = 0
	}
	return &n
}

// Parse reads a feed document. The header is resolved once; unknown columns
// are ignored and short rows are padded with defaults. An empty document has
// no rows.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary header: %w", err)
	}
	idx := resolveHeader(header)

	rows := []Row{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read summary row: %w", err)
		}
		if blank(record) {
			continue
		}
		rows = append(rows, Row{
			RepoName:             idx.text(record, ColRepoName),
			DisplayName:          idx.text(record, ColDisplayName),
			PRsOpened:            idx.count(record, ColPRsOpened),
			PRsMerged:            idx.count(record, ColPRsMerged),
			IssuesReadyForQA:     idx.count(record, ColIssuesReadyForQA),
			IssuesQACompleted:    idx.count(record, ColIssuesQACompleted),
			DaysSinceLastRelease: idx.optionalCount(record, ColDaysSinceLastRelease),
			FetchedAt:            idx.text(record, ColFetchedAt),
		})
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Write emits rows with the fixed header
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	for _, r := range rows {
		days := ""
		if r.DaysSinceLastRelease != nil {
			days = strconv.Itoa(*r.DaysSinceLastRelease)
		}
		record := []string{
			r.RepoName,
			r.DisplayName,
			strconv.Itoa(r.PRsOpened),
			strconv.Itoa(r.PRsMerged),
			strconv.Itoa(r.IssuesReadyForQA),
			strconv.Itoa(r.IssuesQACompleted),
			days,
			r.FetchedAt,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write summary row for %s: %w", r.RepoName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
