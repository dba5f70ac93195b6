package zap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/tenantcache"
)

func TestLoggerForwardsLevelsAndFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", nil)
	l.Info("i", tenantcache.Fields{"key": "slug:acme"})
	l.Warn("w", tenantcache.Fields{"err": errors.New("boom")})
	l.Error("e", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "slug:acme", entries[1].ContextMap()["key"])
	assert.Equal(t, "boom", entries[2].ContextMap()["err"])
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestNilLoggerIsNop(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { New(nil).Info("x", tenantcache.Fields{"a": 1}) })
}
