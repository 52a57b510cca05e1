package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("verbose"))
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LogLevelWarn, Format: "json", Output: &buf})

	l.Info("agent.invoke.start", "agent", "a")
	assert.Empty(t, buf.String())

	l.Warn("config.validation.warning", "agent", "a")
	assert.Contains(t, buf.String(), `"msg":"config.validation.warning"`)
	assert.Contains(t, buf.String(), `"agent":"a"`)
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := With(New(Config{Level: LogLevelDebug, Output: &buf}), "component", "engine")

	l.Debug("model.call.start")

	assert.Contains(t, buf.String(), "component=engine")
	assert.Equal(t, NoOpLogger{}, With(NoOpLogger{}, "k", "v"))
	assert.Equal(t, NoOpLogger{}, OrNoOp(nil))
}
