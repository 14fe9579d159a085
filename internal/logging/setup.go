package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/config"
)

var (
	logMux        sync.Mutex
	logFileHandle *os.File
)

// Setup configures the global logrus logger for a long-running process
// (stdout plus the optional log file). Calling it again replaces the previous
// configuration.
func Setup(cfg *config.Config) error {
	return SetupWithOutput(cfg, os.Stdout)
}

// SetupWithOutput is Setup with an explicit console writer. The CLI passes
// os.Stderr so command output on stdout stays machine-readable.
func SetupWithOutput(cfg *config.Config, console io.Writer) error {
	logMux.Lock()
	defer logMux.Unlock()

	debug := cfg != nil && cfg.Security.Debug
	if debug {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
		log.SetLevel(log.InfoLevel)
	}

	if logFileHandle != nil {
		_ = logFileHandle.Close()
		logFileHandle = nil
	}

	writers := []io.Writer{console}
	if cfg != nil && cfg.Security.LogFile != "" {
		path := cfg.Security.LogFile
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		// 日志里可能出现请求路径和用户信息，只允许本人读取
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFileHandle = file
		writers = append(writers, file)
	}

	log.SetOutput(io.MultiWriter(writers...))
	return nil
}
