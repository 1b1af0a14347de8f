package dataset

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
)

// Fetcher opens the raw bytes behind one dataset URI.
type Fetcher interface {
	Open(ctx context.Context, uri *url.URL) (io.ReadCloser, error)
}

// FetcherFactory builds a fetcher on first use so unused cloud clients are never configured.
type FetcherFactory func(ctx context.Context) (Fetcher, error)

// Registry maps URI schemes to fetchers.
type Registry interface {
	Register(scheme string, factory FetcherFactory) error
	Open(ctx context.Context, rawURI string) (io.ReadCloser, error)
	Schemes() []string
}

type registry struct {
	mu        sync.RWMutex
	factories map[string]FetcherFactory
	fetchers  map[string]Fetcher
}

func NewRegistry() Registry {
	return &registry{
		factories: make(map[string]FetcherFactory),
		fetchers:  make(map[string]Fetcher),
	}
}

// NewDefaultRegistry knows local files, s3:// and azblob://.
func NewDefaultRegistry(settings Settings) Registry {
	r := NewRegistry()
	_ = r.Register("file", func(context.Context) (Fetcher, error) { return fileFetcher{}, nil })
	_ = r.Register("s3", func(ctx context.Context) (Fetcher, error) { return newS3Fetcher(ctx, settings.S3) })
	_ = r.Register("azblob", func(context.Context) (Fetcher, error) { return newAzureFetcher(settings.Azure) })
	return r
}

func (r *registry) Register(scheme string, factory FetcherFactory) error {
	if scheme == "" {
		return fmt.Errorf("scheme cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[scheme]; exists {
		return fmt.Errorf("scheme %q is already registered", scheme)
	}
	r.factories[scheme] = factory
	return nil
}

// Open resolves rawURI. Anything without a scheme is a local path.
func (r *registry) Open(ctx context.Context, rawURI string) (io.ReadCloser, error) {
	uri, err := parseURI(rawURI)
	if err != nil {
		return nil, err
	}
	fetcher, err := r.fetcher(ctx, uri.Scheme)
	if err != nil {
		return nil, err
	}
	return fetcher.Open(ctx, uri)
}

func (r *registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.factories))
	for s := range r.factories {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

func (r *registry) fetcher(ctx context.Context, scheme string) (Fetcher, error) {
	r.mu.RLock()
	f, ok := r.fetchers[scheme]
	factory, known := r.factories[scheme]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}
	if !known {
		return nil, fmt.Errorf("no fetcher for scheme %q", scheme)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.fetchers[scheme]; ok {
		return f, nil
	}
	f, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("create %s fetcher: %w", scheme, err)
	}
	r.fetchers[scheme] = f
	return f, nil
}

func parseURI(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty dataset uri")
	}
	if !strings.Contains(raw, "://") {
		return &url.URL{Scheme: "file", Path: raw}, nil
	}
	uri, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset uri %q: %w", raw, err)
	}
	return uri, nil
}

type fileFetcher struct{}

func (fileFetcher) Open(_ context.Context, uri *url.URL) (io.ReadCloser, error) {
	path := uri.Path
	if uri.Host != "" {
		path = uri.Host + uri.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
