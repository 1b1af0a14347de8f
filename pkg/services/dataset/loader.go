package dataset

import (
	"context"
	"fmt"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

// Loader produces the three datasets of one run.
type Loader interface {
	Load(ctx context.Context) (domain.Datasets, error)
}

// Static serves datasets that are already in memory.
type Static domain.Datasets

func (s Static) Load(_ context.Context) (domain.Datasets, error) {
	return domain.Datasets(s), nil
}

type sourcesLoader struct {
	sources  Sources
	registry Registry
}

func NewLoader(sources Sources, registry Registry) Loader {
	return &sourcesLoader{sources: sources, registry: registry}
}

func (l *sourcesLoader) Load(ctx context.Context) (domain.Datasets, error) {
	var (
		data domain.Datasets
		err  error
	)
	if data.Sessions, err = l.read(ctx, "sessions", l.sources.Sessions); err != nil {
		return domain.Datasets{}, err
	}
	if data.Meta, err = l.read(ctx, "meta", l.sources.Meta); err != nil {
		return domain.Datasets{}, err
	}
	if data.Google, err = l.read(ctx, "google", l.sources.Google); err != nil {
		return domain.Datasets{}, err
	}
	return data, nil
}

func (l *sourcesLoader) read(ctx context.Context, name, uri string) ([]domain.Record, error) {
	if uri == "" {
		return nil, nil
	}
	body, err := l.registry.Open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%s dataset: %w", name, err)
	}
	defer body.Close()

	records, err := ParseRecords(body)
	if err != nil {
		return nil, fmt.Errorf("%s dataset %s: %w", name, uri, err)
	}
	zerolog.Ctx(ctx).Debug().
		Str("dataset", name).
		Str("uri", uri).
		Int("records", len(records)).
		Msg("dataset loaded")
	return records, nil
}
