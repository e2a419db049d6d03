package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormatCarriesFields(t *testing.T) {
	var out bytes.Buffer
	log := New(Options{Level: "info", Format: "json", Out: &out})

	log.Debug("hidden", nil)
	log.Warn("rejected unauthorized action", map[string]interface{}{"action": "deleteProject"})
	log.Error("bridge decode failed", errors.New("invalid response: <"), map[string]interface{}{"call_id": "abc"})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "warn", first["level"])
	assert.Equal(t, "deleteProject", first["action"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "invalid response: <", second["error"])
	assert.Equal(t, "abc", second["call_id"])
}

func TestVerboseForcesDebug(t *testing.T) {
	var out bytes.Buffer
	New(Options{Level: "error", Format: "json", Verbose: true, Out: &out}).Debug("probe", nil)
	assert.Contains(t, out.String(), `"level":"debug"`)
}

func TestUnknownLevelFallsBackToWarn(t *testing.T) {
	var out bytes.Buffer
	log := New(Options{Level: "loud", Format: "json", Out: &out})
	log.Info("skipped", nil)
	log.Warn("kept", nil)
	assert.NotContains(t, out.String(), "skipped")
	assert.Contains(t, out.String(), "kept")
}
