package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Production entries are single-line JSON carrying level, timestamp and message.
func TestProperty_ProductionLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("production log entries decode as JSON", prop.ForAll(
		func(message string, level string) bool {
			var buf bytes.Buffer
			logger := NewWithWriter("production", zapcore.AddSync(&buf))

			switch level {
			case "warn":
				logger.Warn(message)
			case "error":
				logger.Error(message)
			default:
				logger.Info(message)
			}
			_ = logger.Sync()

			var logEntry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
				t.Logf("FAIL: entry is not JSON: %v", err)
				return false
			}

			if logEntry["level"] != level {
				t.Logf("FAIL: level mismatch. Expected %s, got %v", level, logEntry["level"])
				return false
			}
			if _, ok := logEntry["timestamp"]; !ok {
				return false
			}

			return logEntry["msg"] == message
		},
		gen.AnyString(),
		gen.OneConstOf("info", "warn", "error"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Test that structured fields survive encoding
func TestProperty_FieldsAreEncoded(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("file names attached to a log line are present in the entry", prop.ForAll(
		func(file string) bool {
			var buf bytes.Buffer
			logger := NewWithWriter("production", zapcore.AddSync(&buf))

			logger.Warn("Failed to delete orphaned image", zap.String("file", file))
			_ = logger.Sync()

			var logEntry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
				return false
			}

			return logEntry["file"] == file
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDevelopmentLoggerIsConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("development", zapcore.AddSync(&buf))

	logger.Debug("gallery reconciled")
	_ = logger.Sync()

	if !strings.Contains(buf.String(), "gallery reconciled") {
		t.Fatalf("expected debug entry in development output, got %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("development output should not be JSON: %q", buf.String())
	}
}

func TestNewProduction(t *testing.T) {
	logger, err := New("production")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
}
