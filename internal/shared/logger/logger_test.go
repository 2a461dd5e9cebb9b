package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echo_nexus/internal/shared"
	"echo_nexus/internal/shared/types"
)

func TestInit_WritesLeveledConsoleOutput(t *testing.T) {
	buf := shared.NewThreadSafeBuffer()
	require.NoError(t, InitWithWriter(types.LogConf{Level: "warn"}, buf))

	Info().Msg("hidden")
	Warn().Str("remote_addr", "127.0.0.1:5000").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "remote_addr=127.0.0.1:5000")
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	buf := shared.NewThreadSafeBuffer()
	require.NoError(t, InitWithWriter(types.LogConf{Level: "loud"}, buf))

	Debug().Msg("debug line")
	Info().Msg("info line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "info line")
}

func TestWithComponent(t *testing.T) {
	buf := shared.NewThreadSafeBuffer()
	require.NoError(t, InitWithWriter(types.LogConf{Level: "info"}, buf))

	l := WithComponent("gateway")
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "component=gateway")
}
