package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config drives how the zap logger is built. When File is set, entries are
// also written as JSON to a size-rotated file.
type Config struct {
	Development bool
	Level       string
	// Encoding is "console" or "json"; empty picks console in development.
	Encoding string
	// Output defaults to stdout.
	Output io.Writer

	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// Init builds a logger from cfg and makes it the one L returns.
func Init(cfg Config) (*zap.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	prev := global
	global = l
	mu.Unlock()

	if prev != nil {
		_ = prev.Sync()
	}
	return l, nil
}

// MustInit panics if the logger cannot be built.
func MustInit(cfg Config) *zap.Logger {
	l, err := Init(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// L returns the global logger. Before Init it is a development console logger.
func L() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global, _ = New(Config{Development: true})
	}
	return global
}

// Sync flushes the global logger. Terminals reject fsync; that is not an error.
func Sync() error {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		return nil
	}

	err := l.Sync()
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, os.ErrInvalid) {
		return nil
	}
	return err
}

// New returns a logger writing to cfg.Output and, when configured, to a
// rotated JSON file. Production loggers sample repeated entries.
func New(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg)
	if err != nil {
		return nil, err
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
		if cfg.Development {
			encoding = "console"
		}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	enc, err := newEncoder(encoding, out == os.Stdout && colorful())
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), level)}
	if cfg.File != "" {
		fileEnc, _ := newEncoder("json", false)
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(newRotator(cfg)), level))
	}

	core := zapcore.NewTee(cores...)
	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	}
	if cfg.Development {
		opts = append(opts, zap.Development())
	} else {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
	}

	return zap.New(core, opts...), nil
}

func parseLevel(cfg Config) (zapcore.Level, error) {
	if cfg.Level == "" {
		if cfg.Development {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return level, fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
	}
	return level, nil
}

func newRotator(cfg Config) *lumberjack.Logger {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

func newEncoder(encoding string, color bool) (zapcore.Encoder, error) {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	switch encoding {
	case "json":
		ec.EncodeLevel = zapcore.LowercaseLevelEncoder
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec.ConsoleSeparator = " | "
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		ec.EncodeLevel = paddedLevel
		if color {
			ec.EncodeLevel = coloredLevel
		}
		return zapcore.NewConsoleEncoder(ec), nil
	default:
		return nil, fmt.Errorf("logger: unknown encoding %q", encoding)
	}
}

func paddedLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("%-5s", level.CapitalString()))
}

var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel:  "\x1b[36m",
	zapcore.InfoLevel:   "\x1b[32m",
	zapcore.WarnLevel:   "\x1b[33m",
	zapcore.ErrorLevel:  "\x1b[31m",
	zapcore.DPanicLevel: "\x1b[35m",
	zapcore.PanicLevel:  "\x1b[35m",
	zapcore.FatalLevel:  "\x1b[31m",
}

func coloredLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	color, ok := levelColors[level]
	if !ok {
		color = levelColors[zapcore.InfoLevel]
	}
	enc.AppendString(fmt.Sprintf("%s%-5s\x1b[0m", color, level.CapitalString()))
}

func colorful() bool {
	return os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))
}
