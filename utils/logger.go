package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log encodings accepted by LoggerOptions.Format.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// DefaultLogFile is where entries are written unless overridden.
const DefaultLogFile = "arbbot.log"

var (
	log *zap.Logger
	mu  sync.Mutex
)

// LoggerOptions select level, encoding and destination of the process logger.
type LoggerOptions struct {
	Debug bool
	// Format is json or console. Empty means json.
	Format string
	// File receives every entry, and ErrorFile(File) receives internal logger
	// errors. Empty logs to stdout only.
	File string
}

// ErrorFile returns the companion error log for file: arbbot.log becomes
// arbbot-error.log.
func ErrorFile(file string) string {
	if file == "" {
		return ""
	}
	ext := filepath.Ext(file)
	return strings.TrimSuffix(file, ext) + "-error" + ext
}

// NewLogger builds a logger from opts without touching the global instance.
func NewLogger(opts LoggerOptions) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if opts.Debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	switch opts.Format {
	case "", LogFormatJSON:
		config.Encoding = LogFormatJSON
	case LogFormatConsole:
		config.Encoding = LogFormatConsole
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	if opts.File != "" {
		config.OutputPaths = append(config.OutputPaths, opts.File)
		config.ErrorOutputPaths = append(config.ErrorOutputPaths, ErrorFile(opts.File))
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// InitLogger replaces the global logger. The previous one is flushed.
func InitLogger(opts LoggerOptions) (*zap.Logger, error) {
	logger, err := NewLogger(opts)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
	log = logger
	return log, nil
}

// GetLogger returns the global logger instance, falling back to a stdout
// logger when InitLogger was never called.
func GetLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		logger, err := NewLogger(LoggerOptions{})
		if err != nil {
			logger = zap.NewNop()
		}
		log = logger
	}
	return log
}

// CleanupLogger flushes any buffered log entries
func CleanupLogger() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
}
