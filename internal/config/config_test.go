package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2*time.Second, cfg.Settlement.Interval)
	assert.Equal(t, int64(15<<20), cfg.Limits.TaskFileBytes)
	assert.Equal(t, 5, cfg.Contracts.Completion.MaxRating)
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
marketplace:
  name: staging
settlement:
  interval: 500ms
webhooks:
  - url: http://127.0.0.1:9000/hook
    events: [task.approved, payment.released]
`))
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Marketplace.Name)
	assert.Equal(t, 500*time.Millisecond, cfg.Settlement.Interval)
	assert.Equal(t, 50, cfg.Settlement.Batch)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"task.approved", "payment.released"}, cfg.Webhooks[0].Events)

	out, err := cfg.ToYAML()
	require.NoError(t, err)
	again, err := FromYAML(out)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"rating range":   "contracts:\n  completion:\n    min_rating: 4\n    max_rating: 2\n",
		"limits":         "limits:\n  image_bytes: 0\n",
		"webhook url":    "webhooks:\n  - events: [task.created]\n",
		"logging format": "logging:\n  format: xml\n",
		"interval":       "settlement:\n  interval: 0s\n",
	}
	for name, yml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(yml))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptionalMissing(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gigline.yml"), []byte(GenerateDefault()), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
}

func TestLoadServerEnv(t *testing.T) {
	t.Setenv("GIGLINE_ADDR", "0.0.0.0:9090")
	t.Setenv("GIGLINE_JWT_SECRET", "s3cret")
	t.Setenv("GIGLINE_ALLOW_ACTOR_HEADER", "true")
	env, err := LoadServerEnv()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", env.Addr)
	assert.Equal(t, "/api", env.BasePath)
	assert.Equal(t, "s3cret", env.JWTSecret)
	assert.True(t, env.AllowActorHeader)
}
