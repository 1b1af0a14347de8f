package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/databricks/databricks-sdk-go/config"
	"gopkg.in/ini.v1"
)

// Profile is a .databrickscfg section that points at a SQL warehouse.
type Profile struct {
	Config   *config.Config
	HTTPPath string
}

// Registry reads connection profiles from a .databrickscfg file.
type Registry interface {
	GetProfiles(ctx context.Context) ([]string, error)
	GetProfile(ctx context.Context, name string) (*Profile, error)
}

type cfgRegistry struct {
	cfg *ini.File
}

func NewRegistry(path string) (Registry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return &cfgRegistry{cfg: cfg}, nil
}

func (cr *cfgRegistry) GetProfiles(_ context.Context) ([]string, error) {
	var profiles []string
	for _, section := range cr.cfg.Sections() {
		if len(section.Keys()) > 0 {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles, nil
}

func (cr *cfgRegistry) GetProfile(_ context.Context, name string) (*Profile, error) {
	section, err := cr.cfg.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("profile %s not found", name)
	}

	host := section.Key("host").String()
	if host == "" {
		return nil, fmt.Errorf("profile %s has no host", name)
	}

	httpPath := section.Key("http_path").String()
	if httpPath == "" {
		if id := section.Key("warehouse_id").String(); id != "" {
			httpPath = "/sql/1.0/warehouses/" + id
		}
	}
	if httpPath == "" {
		return nil, fmt.Errorf("profile %s needs http_path or warehouse_id", name)
	}

	return &Profile{
		Config: &config.Config{
			Profile: name,
			Host:    host,
			Token:   section.Key("token").String(),
		},
		HTTPPath: httpPath,
	}, nil
}

// hostname strips the scheme and trailing slash the CLI writes into host.
func hostname(host string) string {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}
