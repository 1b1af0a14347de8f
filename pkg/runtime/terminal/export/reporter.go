package export

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/models/store"
)

type TableConfig struct {
	// CellWidth caps every column; longer values are cut with "~".
	CellWidth int
	// MessageWidth caps validation messages.
	MessageWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		CellWidth:    24,
		MessageWidth: 80,
	}
}

type Reporter struct {
	writer io.Writer
	config TableConfig
	tmpl   *template.Template
}

const reports = `
{{define "run"}}
Run {{.RunID}} (template {{.ConfigVersion}}{{if not .ConfigIsActive}}, built-in default{{end}})
{{with .DateRange}}{{if not .IsZero}}Date range: {{date .Start}} to {{date .End}}
{{end}}{{end}}
=== Group Level ({{.GroupRowCount}} rows) ===
{{table .GroupRows}}
=== Aggregate Level ({{.AggregateRowCount}} rows) ===
{{table .AggregateRows}}
{{if .FieldFailures}}
Field failures: {{len .FieldFailures}}
{{range .FieldFailures}}- {{.Field}} [{{.OutputTarget}}]{{if .GroupKey}} {{.GroupKey}}{{end}}: {{.Error}}
{{end}}{{end}}{{end}}

{{define "validation"}}
{{if .IsValid}}Template is valid{{else}}Template is invalid{{end}} ({{len .Errors}} errors, {{len .Warnings}} warnings)
{{range .Errors}}{{issue "ERROR" .}}
{{end}}{{range .Warnings}}{{issue "WARN" .}}
{{end}}{{end}}

{{define "records"}}
{{len .}} records
{{range .}}{{.Source}} {{if .Date}}{{date .Date}}{{else}}{{"-" | printf "%-10s"}}{{end}} {{.GroupKey}} {{payload .Payload}}
{{end}}{{end}}

{{define "runs"}}
{{range .}}{{.ID}}  {{.StartedAt.Format "2006-01-02 15:04:05"}}  template {{.ConfigVersion}}  group={{.GroupRows}} aggregate={{.AggregateRows}} failures={{.FieldFailures}}
{{else}}no runs recorded
{{end}}{{end}}
`

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	c := &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
	funcMap := template.FuncMap{
		"table":   c.table,
		"issue":   c.issue,
		"payload": formatPayload,
		"date": func(v any) string {
			switch t := v.(type) {
			case time.Time:
				if t.IsZero() {
					return "open"
				}
				return t.Format("2006-01-02")
			case *time.Time:
				if t == nil {
					return ""
				}
				return t.Format("2006-01-02")
			}
			return fmt.Sprint(v)
		},
	}
	c.tmpl = template.Must(template.New("reports").Funcs(funcMap).Parse(reports))
	return c
}

func (c *Reporter) Run(result *domain.RunResult) error {
	return c.render("run", result)
}

func (c *Reporter) Validation(result domain.ValidationResult) error {
	return c.render("validation", result)
}

func (c *Reporter) Records(records []store.Record) error {
	return c.render("records", records)
}

func (c *Reporter) Runs(runs []store.Run) error {
	return c.render("runs", runs)
}

func (c *Reporter) render(name string, data any) error {
	if err := c.tmpl.ExecuteTemplate(c.writer, name, data); err != nil {
		return fmt.Errorf("failed to render %s report: %w", name, err)
	}
	return nil
}

// table renders output rows with the union of their columns in first-seen order.
func (c *Reporter) table(rows []domain.OutputRow) string {
	var columns []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, col := range row.Columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	if len(columns) == 0 {
		return "(empty)"
	}

	width := c.config.CellWidth
	separator := "+" + strings.Repeat(strings.Repeat("-", width+2)+"+", len(columns))
	line := func(cells []string) string {
		var b strings.Builder
		b.WriteString("|")
		for _, cell := range cells {
			fmt.Fprintf(&b, " %-*s |", width, truncate(cell, width))
		}
		return b.String()
	}

	out := []string{separator, line(columns), separator}
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = FormatValue(row.Get(col))
		}
		out = append(out, line(cells))
	}
	out = append(out, separator)
	return strings.Join(out, "\n")
}

func (c *Reporter) issue(label string, i domain.ValidationIssue) string {
	where := "template"
	if i.Row != domain.TemplateWide {
		where = "row " + strconv.Itoa(i.Row+1)
	}
	return fmt.Sprintf("%-5s %-10s %-24s %s (%s)",
		label, where, truncate(i.Field, 24), truncate(i.Message, c.config.MessageWidth), i.Code)
}

// FormatValue prints numbers without float noise and nil as blank.
func FormatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	}
	return fmt.Sprint(v)
}

func formatPayload(p map[string]any) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+FormatValue(p[k]))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "~"
}
