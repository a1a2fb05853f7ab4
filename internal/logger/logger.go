package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mafia-game/backend/internal/config"
)

var (
	mu            sync.RWMutex
	logger        *zap.Logger
	moduleLevels  map[string]zapcore.Level
	defaultLogger = zap.NewNop()
)

// Init builds the process logger from cfg. It may be called again to apply a new level.
func Init(cfg *config.LogConfig) error {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	// the cores pass everything; levels are enforced per module by levelCore
	var cores []zapcore.Core
	if cfg.Output == "stdout" || cfg.Output == "both" || cfg.Output == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapcore.DebugLevel))
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		if err := os.MkdirAll(cfg.File.Path, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		cores = append(cores,
			zapcore.NewCore(encoder, zapcore.AddSync(rotating(cfg.File, cfg.File.Filename)), zapcore.DebugLevel),
			zapcore.NewCore(encoder, zapcore.AddSync(rotating(cfg.File, "error.log")), zapcore.ErrorLevel),
		)
	}

	levels := make(map[string]zapcore.Level, len(cfg.Modules))
	for module, level := range cfg.Modules {
		levels[module] = parseLevel(level)
	}

	l := zap.New(
		&levelCore{Core: zapcore.NewTee(cores...), level: parseLevel(cfg.Level)},
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	mu.Lock()
	logger = l
	moduleLevels = levels
	mu.Unlock()
	return nil
}

func rotating(cfg config.LogFileConfig, filename string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Path, filename),
		MaxSize:    cfg.MaxSize, // MB
		MaxAge:     cfg.MaxAge,  // days
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
}

// levelCore overrides the enabled level of the wrapped core.
type levelCore struct {
	zapcore.Core
	level zapcore.Level
}

func (c *levelCore) Enabled(l zapcore.Level) bool {
	return l >= c.level
}

func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func parseLevel(levelStr string) zapcore.Level {
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Get returns the process logger, or a no-op logger before Init.
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return defaultLogger
	}
	return logger
}

// WithModule returns a named child logger, honouring log.modules overrides.
func WithModule(module string) *zap.Logger {
	mu.RLock()
	level, override := moduleLevels[module]
	mu.RUnlock()

	l := Get().Named(module)
	if !override {
		return l
	}
	return l.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		if lc, ok := core.(*levelCore); ok {
			return &levelCore{Core: lc.Core, level: level}
		}
		return &levelCore{Core: core, level: level}
	}))
}

// LogRequest logs one HTTP request.
func LogRequest(method, path string, statusCode int, latency time.Duration, clientIP string) {
	WithModule("http").Info("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", statusCode),
		zap.Duration("latency", latency),
		zap.String("client_ip", clientIP),
	)
}

// Sync flushes buffered entries.
func Sync() error {
	return Get().Sync()
}
