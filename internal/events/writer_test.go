package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigline/internal/db"
	"gigline/internal/migrate"
)

func TestAppendStoresNullsAndPayload(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))

	w := Writer{Now: func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) }}
	ctx := context.Background()
	require.NoError(t, w.Append(ctx, conn, "wallet.deposit", 0, "wallet", "emp", "", EventPayload{"amount": 50}))

	var (
		ts, typ, payload string
		contractID       sql.NullInt64
		entityID         sql.NullString
	)
	require.NoError(t, conn.QueryRow(`SELECT ts,type,contract_id,entity_id,payload_json FROM events`).
		Scan(&ts, &typ, &contractID, &entityID, &payload))
	assert.Equal(t, "2024-01-10T09:00:00Z", ts)
	assert.Equal(t, "wallet.deposit", typ)
	assert.False(t, contractID.Valid)
	assert.Equal(t, "emp", entityID.String)
	assert.JSONEq(t, `{"amount":50}`, payload)
}

func TestAppendRejectsMalformedType(t *testing.T) {
	w := Writer{}
	for _, typ := range []string{"", "deposit", ".x", "task.", "task.*"} {
		err := w.Append(context.Background(), nil, typ, 0, "task", "1", "", nil)
		assert.Error(t, err, typ)
	}
}
