package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/migrate"
	"gigline/internal/repo"
)

func TestResolveConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))
	r := repo.Repo{DB: conn}
	ctx := context.Background()

	cfg, err := ResolveConfig(ctx, dir, "", r)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Contracts.Completion.MinFeedbackWords)

	stored, err := r.GetConfig(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, cfg.Limits, stored.Limits)

	yml := "marketplace:\n  name: test\ncontracts:\n  completion:\n    min_rating: 1\n    max_rating: 5\n    min_feedback_words: 3\n"
	require.NoError(t, os.WriteFile(config.Path(dir), []byte(yml), 0o644))
	cfg, err = ResolveConfig(ctx, dir, "", r)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Contracts.Completion.MinFeedbackWords)
	assert.Equal(t, "test", cfg.Marketplace.Name)

	require.NoError(t, os.Remove(config.Path(dir)))
	cfg, err = ResolveConfig(ctx, dir, "", r)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Contracts.Completion.MinFeedbackWords, "stored copy wins over default")
}
