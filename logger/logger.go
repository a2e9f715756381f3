// Package logger wraps a global zap.SugaredLogger with optional rotating file
// output.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level      string
	Env        string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger wraps zap.SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

var (
	mu           sync.RWMutex
	globalLogger *Logger
)

// Init builds the global logger. Console output is always enabled; when
// opts.File is set, entries are also written as JSON to a rotating file.
func Init(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// New builds a logger without touching the global one.
func New(opts Options) (*Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	atom := zap.NewAtomicLevelAt(level)

	var encCfg zapcore.EncoderConfig
	var consoleEnc zapcore.Encoder
	if opts.Env == "production" {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), atom),
	}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), atom))
	}

	base := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return &Logger{SugaredLogger: base.Sugar()}, nil
}

// Get returns the global logger, falling back to a development logger.
func Get() *Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		base, _ := zap.NewDevelopment(zap.AddCallerSkip(1))
		globalLogger = &Logger{SugaredLogger: base.Sugar()}
	}
	return globalLogger
}

// Set replaces the global logger. Tests use it with zaptest/observer cores.
func Set(l *Logger) {
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{SugaredLogger: z.Sugar()}
}

// With creates a child logger with additional fields.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}

func Debugf(template string, args ...interface{}) { Get().Debugf(template, args...) }
func Infof(template string, args ...interface{})  { Get().Infof(template, args...) }
func Warnf(template string, args ...interface{})  { Get().Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { Get().Errorf(template, args...) }

func Debugw(msg string, kv ...interface{}) { Get().Debugw(msg, kv...) }
func Infow(msg string, kv ...interface{})  { Get().Infow(msg, kv...) }
func Warnw(msg string, kv ...interface{})  { Get().Warnw(msg, kv...) }
func Errorw(msg string, kv ...interface{}) { Get().Errorw(msg, kv...) }

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
