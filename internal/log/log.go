package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	logger     *zap.SugaredLogger
	loggerOnce sync.Once
	loggerMu   sync.RWMutex
	atom       = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger initializes the global logger to write to stderr with timestamps.
func initLogger() {
	loggerOnce.Do(func() {
		loggerMu.Lock()
		logger = newLogger(zapcore.Lock(os.Stderr))
		loggerMu.Unlock()
	})
}

func newLogger(ws zapcore.WriteSyncer) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.ConsoleSeparator = " "

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, atom)
	return zap.New(core).Sugar()
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	initLogger()
	loggerMu.Lock()
	logger = newLogger(zapcore.AddSync(w))
	loggerMu.Unlock()
}

func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		atom.SetLevel(zapcore.DebugLevel)
	case LevelError:
		atom.SetLevel(zapcore.ErrorLevel)
	default:
		atom.SetLevel(zapcore.InfoLevel)
	}
}

// ParseLevel maps a config string such as "debug" onto a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo, "":
		return LevelInfo, nil
	case LevelError:
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("log: unknown level %q", s)
	}
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", errString(err)}, kv...)
	current().Errorw(msg, extended...)
}

// Sync flushes buffered entries; call it once before exit.
func Sync() {
	_ = current().Sync()
}

func current() *zap.SugaredLogger {
	initLogger()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
