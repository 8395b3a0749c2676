package util

import (
	"fmt"

	"github.com/pion/logging"
)

// PionLoggerFactory routes pion's scoped loggers into the pterm logger.
// pion is chatty at info level, so info is demoted to debug.
type PionLoggerFactory struct{}

func (PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{scope: scope}
}

// implements logging.LeveledLogger
type pionLogger struct {
	scope string
}

func (l *pionLogger) prefix(format string, args ...interface{}) string {
	return l.scope + ": " + fmt.Sprintf(format, args...)
}

func (l *pionLogger) Trace(msg string)                          { l.Tracef("%s", msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) { LogTrace("%s", l.prefix(format, args...)) }
func (l *pionLogger) Debug(msg string)                          { l.Debugf("%s", msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) { LogTrace("%s", l.prefix(format, args...)) }
func (l *pionLogger) Info(msg string)                           { l.Infof("%s", msg) }
func (l *pionLogger) Infof(format string, args ...interface{})  { LogDebug("%s", l.prefix(format, args...)) }
func (l *pionLogger) Warn(msg string)                           { l.Warnf("%s", msg) }
func (l *pionLogger) Warnf(format string, args ...interface{})  { LogWarning("%s", l.prefix(format, args...)) }
func (l *pionLogger) Error(msg string)                          { l.Errorf("%s", msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) { LogError("%s", l.prefix(format, args...)) }
