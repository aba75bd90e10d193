package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Encoding: "xml"})
	assert.Error(t, err)
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "WARN", Output: &buf})
	require.NoError(t, err)

	l.Info("filtered out")
	l.Warn("cache lookup failed", zap.String("code", "abc1234"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "cache lookup failed", entry["msg"])
	assert.Equal(t, "abc1234", entry["code"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestNew_DevelopmentConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Development: true, Output: &buf})
	require.NoError(t, err)

	l.Debug("resolved short link from store", zap.String("code", "abc1234"))

	line := buf.String()
	assert.Contains(t, line, " | DEBUG | ")
	assert.Contains(t, line, "resolved short link from store")
	assert.Contains(t, line, `{"code": "abc1234"}`)
	assert.NotContains(t, line, "\x1b[")
}

func TestNew_WritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safeurl.log")
	var stdout bytes.Buffer

	l, err := New(Config{Level: "info", Encoding: "console", Output: &stdout, File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Debug("filtered out")
	l.Info("link created", zap.String("code", "abc1234"))
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"link created"`)
	assert.Contains(t, string(raw), `"code":"abc1234"`)
	assert.NotContains(t, string(raw), "filtered out")
	assert.Contains(t, stdout.String(), "link created")
}

func TestInitReplacesGlobal(t *testing.T) {
	l, err := Init(Config{Level: "warn", Output: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Same(t, l, L())
}
