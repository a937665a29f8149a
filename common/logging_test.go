package common

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	log := SetupLogger(&LoggingOpts{Debug: true, JSON: true, Service: "ledgerd", Version: "test"})
	require.NotNil(t, log)
	require.True(t, log.Enabled(context.Background(), slog.LevelDebug))

	log = SetupLogger(&LoggingOpts{})
	require.False(t, log.Enabled(context.Background(), slog.LevelDebug))
	require.True(t, log.Enabled(context.Background(), slog.LevelInfo))
}
