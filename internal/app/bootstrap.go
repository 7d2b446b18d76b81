package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"assetline/internal/config"
	"assetline/internal/db"
	"assetline/internal/engine"
	"assetline/internal/migrate"
	"assetline/internal/repo"
)

// ResolveConfig loads assetline.yml from the workspace, or from configPath when
// set. A workspace without a config file runs on defaults.
func ResolveConfig(workspace, configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.FromFile(configPath)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// SeedRoles inserts every role declared in config plus the workflow roles.
func SeedRoles(ctx context.Context, r repo.Repo, cfg *config.Config) error {
	roles := map[string]string{}
	for id, role := range cfg.RBAC.Roles {
		roles[id] = role.Description
	}
	for _, id := range []string{cfg.Workflow.ManagerRole, cfg.Workflow.PICRole, cfg.Workflow.AdminRole} {
		if _, ok := roles[id]; !ok {
			roles[id] = ""
		}
	}
	ids := make([]string, 0, len(roles))
	for id := range roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, id := range ids {
		if err := r.InsertRole(ctx, tx, id, roles[id]); err != nil {
			return fmt.Errorf("seed role %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Env is an opened workspace: migrated database, config and engine.
type Env struct {
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
	Log    *zap.Logger
}

func (e *Env) Close() error {
	return e.DB.Close()
}

// Open opens and migrates the workspace database, seeds configured roles and
// builds the engine.
func Open(ctx context.Context, workspace string, cfg *config.Config, log *zap.Logger) (*Env, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	applied, err := migrate.MigrateContext(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	for _, name := range applied {
		log.Info("migration applied", zap.String("name", name))
	}
	eng := engine.New(conn, cfg, log)
	if err := SeedRoles(ctx, eng.Repo, cfg); err != nil {
		conn.Close()
		return nil, err
	}
	return &Env{DB: conn, Config: cfg, Engine: eng, Log: log}, nil
}
