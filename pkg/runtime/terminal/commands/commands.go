package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/runtime/app"
	"github.com/de-tools/campaign-atlas/pkg/services/template"
)

const dateLayout = "2006-01-02"

// AppProvider returns the application built for the running command.
type AppProvider func() *app.App

var ErrNoStore = errors.New("no record store configured, set store.kind")

func parseRange(from, to string) (domain.DateRange, error) {
	var r domain.DateRange
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return r, fmt.Errorf("invalid --from %q, expected YYYY-MM-DD", from)
		}
		r.Start = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return r, fmt.Errorf("invalid --to %q, expected YYYY-MM-DD", to)
		}
		r.End = t
	}
	return r, nil
}

func readTemplate(path string) ([]domain.TemplateRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open template: %w", err)
	}
	defer f.Close()
	return template.ParseCSV(f)
}
