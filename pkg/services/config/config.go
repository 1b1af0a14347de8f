package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/services/dataset"
	"github.com/de-tools/campaign-atlas/pkg/services/formula"
	"github.com/de-tools/campaign-atlas/pkg/services/template"
	"github.com/de-tools/campaign-atlas/pkg/store/records"
	"github.com/de-tools/campaign-atlas/pkg/store/remote"
	"github.com/spf13/viper"
)

const EnvPrefix = "ATLAS"

type StoreKind string

const (
	StoreNone       StoreKind = "none"
	StoreDuckDB     StoreKind = "duckdb"
	StoreDatabricks StoreKind = "databricks"
	StoreSnowflake  StoreKind = "snowflake"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type FiltersConfig struct {
	Mode string `mapstructure:"mode"`
}

type TemplateConfig struct {
	StrictFormulas bool `mapstructure:"strict_formulas"`
	// Essentials is keyed by output target label, e.g. "group_level".
	Essentials map[string][]string `mapstructure:"essentials"`
}

type DuckDBConfig struct {
	Path    string `mapstructure:"path"`
	Threads int    `mapstructure:"threads"`
}

type RemoteConfig struct {
	ConfigFile string `mapstructure:"config_file"`
	Profile    string `mapstructure:"profile"`
}

type StoreConfig struct {
	Kind      StoreKind    `mapstructure:"kind"`
	Table     string       `mapstructure:"table"`
	BatchSize int          `mapstructure:"batch_size"`
	DuckDB    DuckDBConfig `mapstructure:"duckdb"`
	Remote    RemoteConfig `mapstructure:"remote"`
}

type Config struct {
	Server   ServerConfig         `mapstructure:"server"`
	Columns  domain.ColumnMapping `mapstructure:"columns"`
	Filters  FiltersConfig        `mapstructure:"filters"`
	Template TemplateConfig       `mapstructure:"template"`
	Store    StoreConfig          `mapstructure:"store"`
	Dataset  dataset.Settings     `mapstructure:"dataset"`
}

// Load reads an optional config file and applies ATLAS_* environment
// overrides, e.g. ATLAS_STORE_KIND or ATLAS_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	cols := domain.DefaultColumnMapping()
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")

	v.SetDefault("columns.sessions.primary_column", cols.Sessions.Primary)
	v.SetDefault("columns.sessions.secondary_column", cols.Sessions.Secondary)
	v.SetDefault("columns.sessions.date_column", cols.Sessions.Date)
	v.SetDefault("columns.sessions.visitors", cols.Sessions.Visitors)
	v.SetDefault("columns.sessions.cart_adds", cols.Sessions.CartAdds)
	v.SetDefault("columns.sessions.checkout_starts", cols.Sessions.CheckoutStarts)
	v.SetDefault("columns.sessions.checkout_completes", cols.Sessions.CheckoutCompletes)
	v.SetDefault("columns.sessions.page_views", cols.Sessions.PageViews)
	v.SetDefault("columns.sessions.duration", cols.Sessions.Duration)
	v.SetDefault("columns.meta.primary_column", cols.Meta.Primary)
	v.SetDefault("columns.meta.secondary_column", cols.Meta.Secondary)
	v.SetDefault("columns.meta.date_column", cols.Meta.Date)
	v.SetDefault("columns.google.primary_column", cols.Google.Primary)
	v.SetDefault("columns.google.secondary_column", cols.Google.Secondary)
	v.SetDefault("columns.google.date_column", cols.Google.Date)

	v.SetDefault("filters.mode", string(formula.FilterPerRecord))
	v.SetDefault("template.strict_formulas", false)

	v.SetDefault("store.kind", string(StoreNone))
	v.SetDefault("store.table", "")
	v.SetDefault("store.batch_size", records.DefaultBatchSize)
	v.SetDefault("store.duckdb.path", "campaign-atlas.db")
	v.SetDefault("store.duckdb.threads", 4)
	v.SetDefault("store.remote.config_file", "")
	v.SetDefault("store.remote.profile", "DEFAULT")

	v.SetDefault("dataset.s3.profile", "")
	v.SetDefault("dataset.s3.region", dataset.DefaultRegion)
	v.SetDefault("dataset.s3.endpoint", "")
	v.SetDefault("dataset.azure.service_url", "")
}

func (c *Config) Validate() error {
	var errs []error
	switch formula.FilterMode(c.Filters.Mode) {
	case formula.FilterPerRecord, formula.FilterRetentionRatio:
	default:
		errs = append(errs, fmt.Errorf("unknown filters.mode %q", c.Filters.Mode))
	}
	switch c.Store.Kind {
	case StoreNone, StoreDuckDB:
	case StoreDatabricks, StoreSnowflake:
		if c.Store.Remote.ConfigFile == "" {
			errs = append(errs, fmt.Errorf("store.remote.config_file is required for %s", c.Store.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.kind %q", c.Store.Kind))
	}
	if c.Store.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("store.batch_size must not be negative"))
	}
	for label := range c.Template.Essentials {
		if _, ok := domain.ParseOutputTarget(label); !ok {
			errs = append(errs, fmt.Errorf("unknown output target %q in template.essentials", label))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) EvaluatorSettings() formula.Settings {
	return formula.Settings{
		Columns:    c.Columns,
		FilterMode: formula.FilterMode(c.Filters.Mode),
	}
}

func (c *Config) ValidatorSettings() template.Settings {
	settings := template.Settings{
		StrictFormulas: c.Template.StrictFormulas,
		Sessions:       c.Columns.Sessions,
	}
	if len(c.Template.Essentials) > 0 {
		settings.Essentials = make(map[domain.OutputTarget][]string, len(c.Template.Essentials))
		for label, names := range c.Template.Essentials {
			if target, ok := domain.ParseOutputTarget(label); ok {
				settings.Essentials[target] = names
			}
		}
	}
	return settings
}

func (c *Config) RecordSettings() records.Settings {
	return records.Settings{Table: c.Store.Table, BatchSize: c.Store.BatchSize}
}

func (c *Config) RemoteSettings() remote.Settings {
	return remote.Settings{
		Kind:       remote.Kind(c.Store.Kind),
		ConfigFile: c.Store.Remote.ConfigFile,
		Profile:    c.Store.Remote.Profile,
	}
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
