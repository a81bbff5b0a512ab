package logger

import (
	"bytes"
	"context"
	"log"
)

// NewStdLogger takes a logger and returns a standard library logger. This is
// for places like the http.Server that accept only a *log.Logger.
func NewStdLogger(logger *Logger, level Level) *log.Logger {
	return log.New(&logSink{log: logger, level: level}, "", 0)
}

type logSink struct {
	log   *Logger
	level Level
}

// Write implements io.Writer, routing stdlib log output into the structured
// logger at the configured level.
func (s *logSink) Write(data []byte) (int, error) {
	msg := string(bytes.TrimSpace(data))

	switch s.level {
	case LevelDebug:
		s.log.Debugc(context.Background(), 5, msg)
	case LevelWarn:
		s.log.Warnc(context.Background(), 5, msg)
	case LevelError:
		s.log.Errorc(context.Background(), 5, msg)
	default:
		s.log.Infoc(context.Background(), 5, msg)
	}

	return len(data), nil
}
