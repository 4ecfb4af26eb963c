package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigline/internal/db"
)

func TestApplyIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	ran, err := Apply(conn)
	require.NoError(t, err)
	require.NotEmpty(t, ran)
	assert.Equal(t, 1, ran[0].Version)

	ran, err = Apply(conn)
	require.NoError(t, err)
	assert.Empty(t, ran)

	status, err := Status(conn)
	require.NoError(t, err)
	for _, s := range status {
		assert.NotEmpty(t, s.AppliedAt, s.Name)
	}

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tasks'`).Scan(&n))
	assert.Equal(t, 1, n)
}
