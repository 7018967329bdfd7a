package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "production", "debug")

	log.WithField("user_id", 7).Info("login")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "login", entry["msg"])
	assert.Equal(t, float64(7), entry["user_id"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log := NewWithOutput(&bytes.Buffer{}, "development", "loud")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, isText := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}
