// Package logrus adapts a *logrus.Entry to tenantcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/tenantcache"
)

var _ tenantcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l. A nil l uses logrus.StandardLogger().
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: logrus.NewEntry(l)}
}

func (l Logger) Debug(msg string, f tenantcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f tenantcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f tenantcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f tenantcache.Fields) { l.with(f).Error(msg) }

// with routes an "err" field through WithError so formatters render it as logrus.ErrorKey.
func (l Logger) with(f tenantcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		out[k] = v
	}
	return e.WithFields(out)
}
