package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPicksHandlerByEnv(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "production").Info("hello", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])

	buf.Reset()
	New(&buf, "info", "development").Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "production")
	l.Info("dropped")
	assert.Empty(t, buf.String())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, "debug", "production")

	ctx := WithLogger(context.Background(), base)
	ctx = With(ctx, "request_id", "abc")
	FromContext(ctx).Info("scoped")

	assert.Contains(t, buf.String(), `"request_id":"abc"`)
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
