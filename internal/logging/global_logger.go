// Package logging configures the shared logrus logger and provides the Gin middleware
// that writes console requests through it.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/util"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	mainLogFile  = "userdesk.log"
	maxLogFileMB = 10
)

var (
	setupOnce      sync.Once
	writerMu       sync.Mutex
	logWriter      *lumberjack.Logger
	ginInfoWriter  *io.PipeWriter
	ginErrorWriter *io.PipeWriter
)

// LogFormatter renders entries as
// [2026-01-02 15:04:05] [a1b2c3d4] [info ] [gitlab_auth.go:212] message grant_type=refresh_token
type LogFormatter struct{}

// logFieldOrder lists the fields printed after the message, in order. Other fields are dropped.
var logFieldOrder = []string{"grant_type", "store", "path", "status", "error"}

// Format renders a single log entry.
func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	out := entry.Buffer
	if out == nil {
		out = new(bytes.Buffer)
	}

	requestID, _ := entry.Data["request_id"].(string)
	if requestID == "" {
		requestID = "--------"
	}
	level := strings.Replace(entry.Level.String(), "warning", "warn", 1)

	fmt.Fprintf(out, "[%s] [%s] [%-5s] ", entry.Time.Format(time.DateTime), requestID, level)
	if caller := entry.Caller; caller != nil {
		fmt.Fprintf(out, "[%s:%d] ", filepath.Base(caller.File), caller.Line)
	}
	out.WriteString(strings.TrimRight(entry.Message, "\r\n"))
	for _, key := range logFieldOrder {
		if value, ok := entry.Data[key]; ok {
			fmt.Fprintf(out, " %s=%v", key, value)
		}
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// SetupBaseLogger configures the shared logrus instance and routes Gin's own output through it.
// It is safe to call multiple times.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})

		std := log.StandardLogger()
		ginInfoWriter = std.WriterLevel(log.InfoLevel)
		ginErrorWriter = std.WriterLevel(log.ErrorLevel)
		gin.DefaultWriter, gin.DefaultErrorWriter = ginInfoWriter, ginErrorWriter
		gin.DebugPrintFunc = func(format string, values ...any) {
			std.Debugf(strings.TrimRight(format, "\r\n"), values...)
		}

		log.RegisterExitHandler(closeLogOutputs)
	})
}

// ResolveLogDirectory returns WRITABLE_PATH/logs when set, otherwise <auth-dir>/logs,
// falling back to ./logs.
func ResolveLogDirectory(cfg *config.Config) string {
	base := util.WritablePath()
	if base == "" && cfg != nil {
		authDir, err := util.ResolveAuthDir(cfg.AuthDir)
		if err != nil {
			log.Warnf("log directory: cannot resolve auth-dir %q: %v", cfg.AuthDir, err)
		}
		base = authDir
	}
	return filepath.Join(base, "logs")
}

// ConfigureLogOutput sends the shared logger to a rotating file under ResolveLogDirectory
// when cfg.LoggingToFile is set, and to stdout otherwise. A positive LogsMaxTotalSizeMB
// starts the directory size cleaner.
func ConfigureLogOutput(cfg *config.Config) error {
	SetupBaseLogger()
	util.SetLogLevel(cfg)

	writerMu.Lock()
	defer writerMu.Unlock()

	closeFileWriterLocked()
	logDir := ResolveLogDirectory(cfg)
	if !cfg.LoggingToFile {
		log.SetOutput(os.Stdout)
		startLogDirCleanerLocked(logDir, cfg.LogsMaxTotalSizeMB, "")
		return nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("logging: create %s: %w", logDir, err)
	}
	current := filepath.Join(logDir, mainLogFile)
	logWriter = &lumberjack.Logger{Filename: current, MaxSize: maxLogFileMB}
	log.SetOutput(logWriter)
	startLogDirCleanerLocked(logDir, cfg.LogsMaxTotalSizeMB, current)
	return nil
}

func closeFileWriterLocked() {
	if logWriter == nil {
		return
	}
	_ = logWriter.Close()
	logWriter = nil
}

// closeLogOutputs runs from logrus' exit handler.
func closeLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	stopLogDirCleanerLocked()
	closeFileWriterLocked()
	for _, w := range []**io.PipeWriter{&ginInfoWriter, &ginErrorWriter} {
		if *w != nil {
			_ = (*w).Close()
			*w = nil
		}
	}
}
