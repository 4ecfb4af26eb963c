package app

import (
	"context"
	"errors"
	"fmt"

	"gigline/internal/config"
	"gigline/internal/repo"
)

// ResolveConfig picks the active marketplace config. An explicit config file
// wins and is persisted; otherwise the stored copy is used; otherwise the
// default is seeded into the DB.
func ResolveConfig(ctx context.Context, workspace, configPath string, r repo.Repo) (*config.Config, error) {
	var (
		fileCfg *config.Config
		err     error
	)
	if configPath != "" {
		fileCfg, err = config.FromFile(configPath)
	} else {
		fileCfg, err = config.LoadOptional(workspace)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if fileCfg != nil {
		if err := r.UpsertConfig(ctx, r.DB, fileCfg); err != nil {
			return nil, fmt.Errorf("store config: %w", err)
		}
		return fileCfg, nil
	}
	cfg, err := r.GetConfig(ctx, r.DB)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	cfg = config.Default()
	if err := r.UpsertConfig(ctx, r.DB, cfg); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return cfg, nil
}
