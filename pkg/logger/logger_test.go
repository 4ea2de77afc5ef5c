package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestLogger_KeyValueFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewLogger(zap.New(core), "test")

	log.With("execution_id", "abc").Info("Transfer started", "mode", "FAST")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "Transfer started", entries[0].Message)
		assert.Equal(t, "abc", fields["execution_id"])
		assert.Equal(t, "FAST", fields["mode"])
		assert.Equal(t, "test", fields["environment"])
	}
}

func TestNopLogger(t *testing.T) {
	log := NewLogger(nil, "")
	assert.NotNil(t, log.Zap())
	log.Error("discarded", "k", "v")
}
