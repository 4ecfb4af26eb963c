package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancellationHelpNamesAdminResolution(t *testing.T) {
	assert.Contains(t, rootCmd.Long, "an admin resolves it")
	assert.NotContains(t, rootCmd.Long, "other party's approval")

	contract := contractCmd()
	resolve, _, err := contract.Find([]string{"resolve-cancel"})
	require.NoError(t, err)
	assert.Equal(t, "resolve-cancel <contract-id>", resolve.Use)
	assert.Contains(t, resolve.Short, "admin")
}
