package tenantcache

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Adapters for zap, logrus and slog live
// under log/. A nil Logger in Options disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// With returns a Logger that merges base into every call's fields.
// Call-site fields win on conflict.
func With(l Logger, base Fields) Logger {
	if l == nil {
		return NopLogger{}
	}
	if len(base) == 0 {
		return l
	}
	return fieldLogger{next: l, base: base}
}

type fieldLogger struct {
	next Logger
	base Fields
}

func (l fieldLogger) merge(f Fields) Fields {
	out := make(Fields, len(l.base)+len(f))
	for k, v := range l.base {
		out[k] = v
	}
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (l fieldLogger) Debug(msg string, f Fields) { l.next.Debug(msg, l.merge(f)) }
func (l fieldLogger) Info(msg string, f Fields)  { l.next.Info(msg, l.merge(f)) }
func (l fieldLogger) Warn(msg string, f Fields)  { l.next.Warn(msg, l.merge(f)) }
func (l fieldLogger) Error(msg string, f Fields) { l.next.Error(msg, l.merge(f)) }
