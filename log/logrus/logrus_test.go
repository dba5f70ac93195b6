package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tenantcache"
)

func TestLoggerForwardsFieldsAndError(t *testing.T) {
	t.Parallel()

	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	boom := errors.New("boom")
	l.Warn("store failed", tenantcache.Fields{"key": "uuid:1", "err": boom})

	require.Len(t, hook.AllEntries(), 1)
	e := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, e.Level)
	assert.Equal(t, "uuid:1", e.Data["key"])
	assert.Equal(t, boom, e.Data[logrus.ErrorKey])

	l.Debug("quiet", nil)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}
