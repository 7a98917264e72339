package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Feature: storefront-sync, Property: Logs are structured
func TestProperty_LogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every entry is one JSON object with the production keys", prop.ForAll(
		func(message string, level string, value string) bool {
			var buf bytes.Buffer
			log := NewJSON(zapcore.AddSync(&buf), zapcore.DebugLevel)

			fields := []zap.Field{zap.String("location", value)}
			switch level {
			case "debug":
				log.Debug(message, fields...)
			case "warn":
				log.Warn(message, fields...)
			case "error":
				log.Error(message, fields...)
			default:
				log.Info(message, fields...)
			}

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Logf("FAIL: not JSON: %q", buf.String())
				return false
			}

			for _, key := range []string{"timestamp", "level", "message", "caller"} {
				if _, ok := entry[key]; !ok {
					t.Logf("FAIL: missing key %s", key)
					return false
				}
			}
			return entry["message"] == message && entry["location"] == value
		},
		gen.AlphaString(),
		gen.OneConstOf("debug", "info", "warn", "error"),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNewJSON_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(zapcore.AddSync(&buf), zapcore.WarnLevel)

	log.Info("dropped")
	log.Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"kept"`)
}

func TestNewJSON_EncodesDurationsInMillis(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(zapcore.AddSync(&buf), zapcore.InfoLevel)

	log.Info("Request completed", zap.Duration("duration", 1500*time.Millisecond))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(1500), entry["duration"])
}

func TestNew(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		t.Run(env, func(t *testing.T) {
			log, err := New(env)
			require.NoError(t, err)
			require.NotNil(t, log)

			assert.Equal(t, env != "production", log.Core().Enabled(zapcore.DebugLevel))
		})
	}
}
