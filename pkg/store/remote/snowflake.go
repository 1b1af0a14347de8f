package remote

import (
	"context"
	"database/sql"
	"fmt"

	sf "github.com/snowflakedb/gosnowflake"
	"github.com/spf13/viper"
)

// LoadSnowflakeConfig reads a Snowflake profile file (yaml, toml or json).
func LoadSnowflakeConfig(path string) (*sf.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg sf.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse snowflake config: %w", err)
	}
	if cfg.Account == "" || cfg.User == "" {
		return nil, fmt.Errorf("snowflake config %s needs account and user", path)
	}
	return &cfg, nil
}

func openSnowflake(_ context.Context, settings Settings) (*sql.DB, error) {
	cfg, err := LoadSnowflakeConfig(settings.ConfigFile)
	if err != nil {
		return nil, err
	}

	dsn, err := sf.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create DSN: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake: %w", err)
	}
	return db, nil
}
