package template

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
)

var ErrInvalidCSV = errors.New("invalid template csv")

// Header is the column layout of a template file.
var Header = []string{"Fields", "Output File Name", "Input from?", "Type", "Formula", "Notes"}

const notesColumn = 5

// ParseCSV reads template rows. Header names are matched trimmed and case
// insensitively; every column except Notes is required.
func ParseCSV(r io.Reader) ([]domain.TemplateRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidCSV)
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidCSV, err)
	}

	positions := make([]int, len(Header))
	for i := range positions {
		positions[i] = -1
	}
	for col, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		for i, want := range Header {
			if strings.EqualFold(strings.TrimSpace(name), want) {
				positions[i] = col
			}
		}
	}
	var missing []string
	for i, pos := range positions {
		if pos < 0 && i != notesColumn {
			missing = append(missing, Header[i])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrInvalidCSV, strings.Join(missing, ", "))
	}

	var rows []domain.TemplateRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}

		cell := func(i int) string {
			pos := positions[i]
			if pos < 0 || pos >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[pos])
		}
		row := domain.TemplateRow{
			Fields:       cell(0),
			OutputTarget: cell(1),
			InputSource:  cell(2),
			Type:         cell(3),
			Formula:      cell(4),
			Notes:        cell(5),
		}
		if row == (domain.TemplateRow{}) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes definitions with canonical labels.
func WriteCSV(w io.Writer, defs []domain.FieldDefinition) error {
	rows := make([]domain.TemplateRow, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, d.Row())
	}
	return WriteRows(w, rows)
}

func WriteRows(w io.Writer, rows []domain.TemplateRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write([]string{r.Fields, r.OutputTarget, r.InputSource, r.Type, r.Formula, r.Notes}); err != nil {
			return fmt.Errorf("failed to write row %q: %w", r.Fields, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
