package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormatWithFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithOutput("info", "json", &buf))
	t.Cleanup(func() { log = nil })

	WithFields(map[string]interface{}{"session_id": "abc"}).Info("Generating meme")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, "Generating meme", entry["msg"])
	assert.Equal(t, "info", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithOutput("warn", "text", &buf))
	t.Cleanup(func() { log = nil })

	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	assert.Empty(t, buf.String())

	Warnf("shown %d", 3)
	assert.Contains(t, buf.String(), "shown 3")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithOutput("verbose", "text", &buf))
	t.Cleanup(func() { log = nil })

	Debugf("debug line")
	Info("info line")
	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}
