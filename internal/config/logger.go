package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/phuslu/log"
)

// Session is the logger of one CLI or TUI session, writing to its own file.
type Session struct {
	Logger  *log.Logger
	LogPath string
	DBPath  string
	file    *os.File
}

func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// OpenSession creates outputDir if needed and returns the session logger, writing to
// placetap_<ts>.log next to the session database placetap_<ts>.db. With debug the
// logger also writes to stderr and lowers its level.
func OpenSession(outputDir, logDir string, debug bool) (*Session, error) {
	if logDir == "" {
		logDir = outputDir
	}
	for _, dir := range []string{outputDir, logDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating dir %s: %w", dir, err)
		}
	}

	base := "placetap_" + time.Now().Format("20060102_150405")
	logPath := filepath.Join(logDir, base+".log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}

	return &Session{
		Logger:  NewLogger(f, debug),
		LogPath: logPath,
		DBPath:  filepath.Join(outputDir, base+".db"),
		file:    f,
	}, nil
}

// NewLogger returns a JSON logger on w; debug adds a console copy on stderr.
func NewLogger(w io.Writer, debug bool) *log.Logger {
	logger := &log.Logger{
		Level:      log.InfoLevel,
		TimeFormat: time.RFC3339,
		Writer:     &log.IOWriter{Writer: w},
	}
	if debug {
		logger.Level = log.DebugLevel
		logger.Caller = 1
		logger.Writer = &log.MultiEntryWriter{
			&log.IOWriter{Writer: w},
			&log.ConsoleWriter{Writer: os.Stderr, ColorOutput: true},
		}
	}
	return logger
}
