package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LoggerContextKey ContextKey = "request.logger"

	logFileExt = ".log"
	megabyte   = 1 << 20
)

// LogWriter is a concurrent safe file writer used by the zap core. It rolls
// over to a new file once the current one reaches the max size and keeps at
// most maxFiles files in the folder.
type LogWriter struct {
	mu       sync.Mutex
	clock    Clocker
	file     *os.File
	folder   string
	maxBytes int64
	maxFiles int
	size     int64
	env      string
}

func NewLogWriter(config *Config, clock Clocker) *LogWriter {
	env := "dev"
	if config.IsProduction {
		env = "prod"
	}
	return &LogWriter{
		clock:    clock,
		folder:   config.LogFolder,
		maxBytes: int64(config.LogMaxSize) * megabyte,
		maxFiles: config.LogMaxFiles,
		env:      env,
	}
}

// Close closes the current log file.
func (lw *LogWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.file == nil {
		return nil
	}
	err := lw.file.Close()
	lw.file = nil
	return err
}

func (lw *LogWriter) Sync() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.file == nil {
		return nil
	}
	return lw.file.Sync()
}

// Write implements io.Writer. A record never spans two files.
func (lw *LogWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if int64(len(p)) > lw.maxBytes {
		return 0, fmt.Errorf("logging: record of %d bytes exceeds the max file size of %d bytes", len(p), lw.maxBytes)
	}
	if lw.file == nil || lw.size+int64(len(p)) > lw.maxBytes {
		if err := lw.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := lw.file.Write(p)
	lw.size += int64(n)
	return n, err
}

// rotate closes the current file, opens a fresh one and prunes the oldest files.
func (lw *LogWriter) rotate() error {
	if lw.file != nil {
		if err := lw.file.Close(); err != nil {
			return err
		}
		lw.file = nil
	}
	path := LogFilePath(lw.folder, lw.env, lw.clock.Now())
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	lw.file = file
	lw.size = info.Size()
	return lw.prune(path)
}

// prune removes the oldest log files beyond the retention. File names sort
// in creation order.
func (lw *LogWriter) prune(current string) error {
	if lw.maxFiles <= 0 {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(lw.folder, "*."+lw.env+logFileExt))
	if err != nil || len(files) <= lw.maxFiles {
		return err
	}
	sort.Strings(files)
	for _, f := range files[:len(files)-lw.maxFiles] {
		if f == current {
			continue
		}
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// LogFilePath returns the path of a log file created at t.
func LogFilePath(folder, env string, t time.Time) string {
	return filepath.Join(folder, t.Format("20060102.150405")+"."+env+logFileExt)
}

// stdoutSyncer ignores Sync on the standard output, which fails on some
// platforms with `handle is invalid`.
type stdoutSyncer struct {
	*os.File
}

func (stdoutSyncer) Sync() error { return nil }

// SetupLogging builds the application logger. Records always go to the log
// files as json and, outside production, to the standard output as well.
// The returned level can be changed at runtime from the ops endpoints.
func SetupLogging(config *Config, w zapcore.WriteSyncer, clock TickerClocker) (*zap.Logger, zap.AtomicLevel, func() error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if config.IsProduction {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.LevelKey = "lvl"
	encoderConfig.NameKey = "logger"
	encoderConfig.MessageKey = "msg"
	encoderConfig.CallerKey = "caller"
	encoderConfig.StacktraceKey = "skt"

	level := zap.NewAtomicLevelAt(config.LogLevel)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), w, level)
	if !config.IsProduction {
		console := encoderConfig
		console.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewTee(core, zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(stdoutSyncer{os.Stdout}), level))
	}

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.FatalLevel), zap.WithClock(clock)).
		Named("library").
		With(
			zap.String("app.commit", config.GitCommit),
			zap.String("app.tag", config.GitTag),
			zap.String("app.built", config.BuildTime),
		)

	flush := func() error {
		// stdout and closed files report EINVAL or ENOTTY on sync.
		if err := logger.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
			return fmt.Errorf("[flush logs]: %w", err)
		}
		return nil
	}
	return logger, level, flush
}

// LoggerFromContext returns the request scoped logger or the fallback.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*zap.Logger); ok {
		return logger
	}
	return fallback
}

// GetLoggerFromContext retrieves the logger of the request or the api one.
func (api *APIHandler) GetLoggerFromContext(ctx context.Context) *zap.Logger {
	return LoggerFromContext(ctx, api.logger)
}
