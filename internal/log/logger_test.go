package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"minimg/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.Info("info message")
	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "info message")
	buf.Reset()

	l.Warn("warn message")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "warn message")
	buf.Reset()

	l.Error("error message")
	assert.Contains(t, buf.String(), "ERROR")
	assert.Contains(t, buf.String(), "error message")
	buf.Reset()

	l.Infof("formatted %s", "message")
	assert.Contains(t, buf.String(), "formatted message")
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	SetDebug(false)
	l.Debug("debug message")
	assert.Empty(t, buf.String())

	SetDebug(true)
	defer SetDebug(false)
	l.Debug("debug message")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "debug message")
	buf.Reset()

	l.Debugf("formatted %s", "debug")
	assert.Contains(t, buf.String(), "formatted debug")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel("warn"))

	l.Info("quiet")
	assert.Empty(t, buf.String())

	l.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.With(F("key1", "value1"), F("key2", 123)).Info("structured message")
	output := buf.String()
	assert.Contains(t, output, "structured message")
	assert.Contains(t, output, "key1=value1")
	assert.Contains(t, output, "key2=123")
	buf.Reset()

	// Chained fields accumulate
	l.With(F("key1", "value1")).With(F("key2", 123)).Info("chained fields")
	output = buf.String()
	assert.Contains(t, output, "key1=value1")
	assert.Contains(t, output, "key2=123")
}

func TestJSONLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithJSON())

	l.Info("json message")

	var logEntry map[string]interface{}
	err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "INFO", logEntry["level"])
	assert.Equal(t, "json message", logEntry["message"])
	assert.Contains(t, logEntry, "timestamp")
	assert.Contains(t, logEntry, "caller")
	buf.Reset()

	l.With(F("key1", "value1"), F("key2", 123)).Info("structured json")
	logEntry = map[string]interface{}{}
	err = json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "value1", logEntry["key1"])
	assert.Equal(t, float64(123), logEntry["key2"]) // JSON numbers are float64
}

func TestErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	originalLogger := logger
	Configure(WithOutput(&buf))
	defer func() { logger = originalLogger }()

	stdErr := fmt.Errorf("standard error")
	LogWithFields(F("error", stdErr.Error())).Error("error occurred")
	output := buf.String()
	assert.Contains(t, output, "error occurred")
	assert.Contains(t, output, "standard error")
	buf.Reset()

	appErr := errors.New("application error")
	LogWithError(appErr).Error("app error occurred")
	output = buf.String()
	assert.Contains(t, output, "application error")
	assert.Contains(t, output, "error_kind=0")
	buf.Reset()

	fileErr := errors.NewFileError("file error", "/path/to/file", errors.FileNotFound, nil)
	LogWithError(fileErr).Error("file error occurred")
	output = buf.String()
	assert.Contains(t, output, "file error: /path/to/file")
	assert.Contains(t, output, "path=/path/to/file")
	assert.Contains(t, output, "error_kind=1")
	buf.Reset()

	configErr := errors.NewConfigError("config error", "radius", errors.InvalidConfig, nil)
	LogWithError(configErr).Error("config error occurred")
	output = buf.String()
	assert.Contains(t, output, "config error: radius")
	assert.Contains(t, output, "param=radius")
	assert.Contains(t, output, fmt.Sprintf("error_kind=%d", errors.InvalidConfig))
	buf.Reset()

	decodeErr := errors.NewDecodeError("/pics/a.png", 7, errors.DecodeFailed, fmt.Errorf("truncated"))
	LogWithError(decodeErr).Warn("decode failed")
	output = buf.String()
	assert.Contains(t, output, "index=7")
	assert.Contains(t, output, "path=/pics/a.png")
	buf.Reset()

	LogError(fileErr, "convenient error log")
	output = buf.String()
	assert.Contains(t, output, "convenient error log")
	assert.Contains(t, output, "file error: /path/to/file")
}

func TestCallerInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.Info("caller test")
	assert.Contains(t, buf.String(), "logger_test.go:")
	buf.Reset()

	originalLogger := logger
	logger = l
	defer func() { logger = originalLogger }()
	Info("global caller test")
	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFileOutput(t *testing.T) {
	path := t.TempDir() + "/minimg.log"

	var buf bytes.Buffer
	originalLogger := logger
	Configure(WithOutput(&buf), WithFile(path))
	defer func() {
		_ = Close()
		logger = originalLogger
	}()

	Info("file test message")

	assert.Contains(t, buf.String(), "file test message")
	fileContent, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(fileContent), "file test message")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.WithContext(context.Background()).Info("context message")
	assert.Contains(t, buf.String(), "context message")
}

func TestNestedErrors(t *testing.T) {
	var buf bytes.Buffer
	originalLogger := logger
	Configure(WithOutput(&buf))
	defer func() { logger = originalLogger }()

	baseErr := fmt.Errorf("base error")
	fileErr := errors.NewFileError("file error", "/path/file", errors.FileNotFound, baseErr)
	configErr := errors.NewConfigError("config error", "setting", errors.InvalidConfig, fileErr)

	LogWithError(configErr).Error("nested error occurred")
	output := buf.String()

	assert.Contains(t, output, "config error: setting: file error: /path/file: base error")
	assert.Contains(t, output, "param=setting")
	assert.Contains(t, output, "path=/path/file")
}

func TestConfigure(t *testing.T) {
	originalLogger := logger
	defer func() { logger = originalLogger }()

	var buf bytes.Buffer
	Configure(WithOutput(&buf), WithJSON())
	Info("global config test")

	var logEntry map[string]interface{}
	err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &logEntry)
	require.NoError(t, err)
	assert.Equal(t, "global config test", logEntry["message"])
}

func TestNilErrorHandling(t *testing.T) {
	var buf bytes.Buffer
	originalLogger := logger
	Configure(WithOutput(&buf))
	defer func() { logger = originalLogger }()

	LogWithError(nil).Error("nil error test")
	output := buf.String()
	assert.Contains(t, output, "nil error test")
	assert.Contains(t, output, "error=<nil>")
}
