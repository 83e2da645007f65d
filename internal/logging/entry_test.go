package logging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "critical", LevelCritical.String())
}

func TestLevel_ParseRoundTrip(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelCritical} {
		parsed, err := ParseLevel(level.String())
		assert.NoError(t, err)
		assert.Equal(t, level, parsed)
	}
}

func TestLevel_ParseUnknown(t *testing.T) {
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLevel_JSONEncoding(t *testing.T) {
	data, err := json.Marshal(LevelError)
	assert.NoError(t, err)
	assert.Equal(t, `"error"`, string(data))

	var level Level
	assert.NoError(t, json.Unmarshal([]byte(`"critical"`), &level))
	assert.Equal(t, LevelCritical, level)
}
