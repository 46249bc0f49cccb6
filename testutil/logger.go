package testutil

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/trezcool/masomo-portal/core"
)

// Logger is a core.Logger writing to the test log; it also records messages for assertions.
type Logger struct {
	t testing.TB

	mu       sync.Mutex
	messages []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t testing.TB) *Logger {
	return &Logger{t: t}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, msg)
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%v", arg))
	}
	line := level + ": " + strings.Join(parts, " | ")
	l.mu.Lock()
	l.messages = append(l.messages, line)
	l.mu.Unlock()
	l.t.Log(line)
}

// Messages returns every logged line, "LEVEL: msg | arg...".
func (l *Logger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args) }
