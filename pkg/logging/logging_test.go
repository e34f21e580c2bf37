package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogger records formatted messages for assertions.
type captureLogger struct {
	entries []string
}

func (c *captureLogger) Debugf(msg string, args ...interface{}) { c.record(msg, args...) }
func (c *captureLogger) Infof(msg string, args ...interface{})  { c.record(msg, args...) }
func (c *captureLogger) Warnf(msg string, args ...interface{})  { c.record(msg, args...) }
func (c *captureLogger) Errorf(msg string, args ...interface{}) { c.record(msg, args...) }

func (c *captureLogger) record(msg string, args ...interface{}) {
	c.entries = append(c.entries, fmt.Sprintf(msg, args...))
}

func TestPrefixLogger(t *testing.T) {
	capture := &captureLogger{}
	logger := NewPrefixLogger("server> ", capture)

	logger.Infof("listening on %d", 11434)
	logger.Errorf("boom")

	require.Len(t, capture.entries, 2)
	assert.Equal(t, "server> listening on 11434", capture.entries[0])
	assert.Equal(t, "server> boom", capture.entries[1])
}

func TestNewZapLogger(t *testing.T) {
	logger, err := NewZapLogger(ZapConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	logger.Infof("hello %s", "world")

	// Unknown level and format fall back rather than fail.
	logger, err = NewZapLogger(ZapConfig{Level: "chatty", Format: "interpretive-dance"})
	require.NoError(t, err)
	logger.Debugf("dropped below default level")
}
