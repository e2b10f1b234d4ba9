// Package app wires the workspace pieces together for the CLI: database,
// migrations, configuration and the seeded responsible-body directory.
package app

import (
	"context"
	"fmt"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/config"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/db"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/engine"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/migrate"
)

// OpenEngine bootstraps a ready-to-use engine on the workspace: ensures the
// workspace directory, opens the service database, applies migrations,
// loads the configuration (falling back to defaults) and seeds the body
// directory. The returned func closes the database.
func OpenEngine(ctx context.Context, workspace string) (engine.Engine, func(), error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return engine.Engine{}, nil, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, cfg)
	if err := e.SeedOrgaos(ctx); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("seed orgaos: %w", err)
	}
	return e, func() { conn.Close() }, nil
}
