package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op until Init is called so that
// packages can log from tests without setup.
var Log = zap.NewNop().Sugar()

var level = zap.NewAtomicLevelAt(zap.InfoLevel)

func Init() {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// SetLevel changes the level of the logger built by Init. Unknown names are
// ignored and reported.
func SetLevel(name string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		Log.Warnf("unknown log level %q, keeping %s", name, level.Level())
		return
	}
	level.SetLevel(l)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}
