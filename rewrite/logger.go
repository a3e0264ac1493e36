package rewrite

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the rewrite package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the rewrite package's logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

// LogOnce drops lines it has already written. One is used per mod load so
// repeated findings across a mod's binaries are reported once.
type LogOnce struct {
	log  *zap.Logger
	seen map[string]bool
	mu   sync.Mutex
}

// NewLogOnce wraps l, or Logger() when l is nil.
func NewLogOnce(l *zap.Logger) *LogOnce {
	if l == nil {
		l = Logger()
	}
	return &LogOnce{log: l, seen: make(map[string]bool)}
}

// Log writes msg at level unless the same line was already written.
func (l *LogOnce) Log(level zapcore.Level, msg string) {
	key := level.String() + "\x00" + msg
	l.mu.Lock()
	dup := l.seen[key]
	l.seen[key] = true
	l.mu.Unlock()
	if dup {
		return
	}
	if ce := l.log.Check(level, msg); ce != nil {
		ce.Write()
	}
}

// Seen reports whether msg was logged at level.
func (l *LogOnce) Seen(level zapcore.Level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[level.String()+"\x00"+msg]
}
