package logging

const (
	LogLevelDebug = 0
	LogLevelInfo  = 1
	LogLevelWarn  = 2
	LogLevelError = 3
)

// Logger is the logging surface used throughout the launcher. Keeping it an
// interface lets tests plug in a silent logger and keeps zap out of
// package signatures.
type Logger interface {
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

type prefixLogger struct {
	prefix string
	next   Logger
}

// NewPrefixLogger returns a logger that prepends a fixed prefix to every
// message, used to tag forwarded server output and per-module logs.
func NewPrefixLogger(prefix string, next Logger) Logger {
	return &prefixLogger{prefix: prefix, next: next}
}

func (l *prefixLogger) Debugf(msg string, args ...interface{}) {
	l.next.Debugf(l.prefix+msg, args...)
}

func (l *prefixLogger) Infof(msg string, args ...interface{}) {
	l.next.Infof(l.prefix+msg, args...)
}

func (l *prefixLogger) Warnf(msg string, args ...interface{}) {
	l.next.Warnf(l.prefix+msg, args...)
}

func (l *prefixLogger) Errorf(msg string, args ...interface{}) {
	l.next.Errorf(l.prefix+msg, args...)
}

// NopLogger discards everything. Handy in tests.
type NopLogger struct{}

func (NopLogger) Debugf(msg string, args ...interface{}) {}
func (NopLogger) Infof(msg string, args ...interface{})  {}
func (NopLogger) Warnf(msg string, args ...interface{})  {}
func (NopLogger) Errorf(msg string, args ...interface{}) {}
