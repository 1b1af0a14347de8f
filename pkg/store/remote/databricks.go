package remote

import (
	"context"
	"database/sql"
	"fmt"

	dbsql "github.com/databricks/databricks-sql-go"
	"github.com/rs/zerolog"
)

func openDatabricks(ctx context.Context, settings Settings) (*sql.DB, error) {
	registry, err := NewRegistry(settings.ConfigFile)
	if err != nil {
		return nil, err
	}
	profile, err := registry.GetProfile(ctx, settings.Profile)
	if err != nil {
		return nil, err
	}

	connector, err := dbsql.NewConnector(
		dbsql.WithServerHostname(hostname(profile.Config.Host)),
		dbsql.WithPort(443),
		dbsql.WithHTTPPath(profile.HTTPPath),
		dbsql.WithAccessToken(profile.Config.Token),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create databricks connector: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("profile", settings.Profile).
		Str("host", hostname(profile.Config.Host)).
		Msg("opened databricks sql connection")
	return sql.OpenDB(connector), nil
}
