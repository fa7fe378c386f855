// raft/logging.go
package raft

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// LogLevel is the minimum severity a Logger will emit.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (lv LogLevel) tag() string {
	switch lv {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger emits one line per raft event as a level tag plus a flat
// key=value field list, rather than a distinct printf-formatted string
// per call site: every protocol transition this package reports (a role
// change, a vote outcome, a commit advancing) reduces to the same shape —
// an event name and a handful of term/node/index fields — so one emitter
// covers all of them.
type Logger struct {
	nodeID int
	level  LogLevel
}

// NewLogger creates a logger that drops anything below level.
func NewLogger(nodeID int, level LogLevel) *Logger {
	return &Logger{nodeID: nodeID, level: level}
}

// Event logs a structured line: event is a short name, fields alternate
// key, value, key, value, ...
func (l *Logger) Event(level LogLevel, event string, fields ...interface{}) {
	if level < l.level {
		return
	}
	var b strings.Builder
	b.WriteString(event)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	l.write(level, b.String())
}

// Debugf, Infof, Warnf and Errorf are the escape hatch for the handful of
// messages (startup, shutdown, a failed persistence write) that are
// one-off prose rather than a recurring protocol event worth a field
// list.
func (l *Logger) Debugf(format string, args ...interface{}) { l.printf(DEBUG, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.printf(INFO, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.printf(WARN, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.printf(ERROR, format, args...) }

func (l *Logger) printf(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.write(level, fmt.Sprintf(format, args...))
}

func (l *Logger) write(level LogLevel, msg string) {
	log.Printf("%s node=%d level=%s %s", time.Now().Format("15:04:05.000"), l.nodeID, level.tag(), msg)
}
