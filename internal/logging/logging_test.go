package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubsystemLoggers(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, SetLevels("info"))

	Logger(CLI).Infof("compiled %d file(s)", 2)
	Logger(Watcher).Debug("hidden")
	out := buf.String()
	assert.Contains(t, out, "[INF] CLI: compiled 2 file(s)")
	assert.NotContains(t, out, "hidden")

	assert.Same(t, Logger(CLI), Logger(CLI))
	assert.Contains(t, Subsystems(), Compiler)
}

func TestSetLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	require.NoError(t, SetLevels("error"))
	Logger(CLI).Info("quiet")
	Logger(CLI).Error("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "[ERR] CLI: loud")

	require.NoError(t, SetLevels("debug"))
	Logger(Watcher).Debug("verbose")
	assert.Contains(t, buf.String(), "[DBG] WTCH: verbose")

	assert.Error(t, SetLevels("chatty"))
}
