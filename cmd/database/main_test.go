package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunReturnsExitCodeOnBadConfig(t *testing.T) {
	t.Setenv("MONGODB_URI", "")

	require.Equal(t, 1, run(command{indexes: true}))
}
