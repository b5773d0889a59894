package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureLoggingDefaultsToInfo(t *testing.T) {
	require.NoError(t, ConfigureLogging(""))
	require.NoError(t, ConfigureLogging("debug"))
	// Unknown levels fall back to info rather than failing startup.
	require.NoError(t, ConfigureLogging("not-a-level"))
}
