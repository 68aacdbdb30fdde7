package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init builds the process logger. Production uses the JSON encoder at info level,
// anything else uses the colored console encoder at debug level.
func Init(env string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	sugar = l.Sugar()
	return nil
}

func get() *zap.SugaredLogger {
	once.Do(func() {
		if sugar == nil {
			l, err := zap.NewDevelopment(zap.AddCallerSkip(1))
			if err != nil {
				l = zap.NewNop()
			}
			sugar = l.Sugar()
		}
	})
	return sugar
}

func Debug(msg string, keysAndValues ...any) {
	get().Debugw(msg, normalize(keysAndValues)...)
}

func Info(msg string, keysAndValues ...any) {
	get().Infow(msg, normalize(keysAndValues)...)
}

func Warn(msg string, keysAndValues ...any) {
	get().Warnw(msg, normalize(keysAndValues)...)
}

func Error(msg string, keysAndValues ...any) {
	get().Errorw(msg, normalize(keysAndValues)...)
}

func Sync() {
	_ = get().Sync()
}

// normalize lets callers pass a bare error as the only argument.
func normalize(kv []any) []any {
	if len(kv) == 1 {
		if err, ok := kv[0].(error); ok {
			return []any{"error", err}
		}
	}
	return kv
}
