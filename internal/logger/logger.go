// Package logger wires the subsystem loggers of the node and keeps a bounded
// ring of recent lines for the HTTP API (see backend.go).
package logger

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"
)

// Message is one entry of the ring.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Level     string    `json:"level"`
}

// levelNames are the level labels reported to API clients.
var levelNames = map[slog.Level]string{
	slog.LevelTrace:    "debug",
	slog.LevelDebug:    "debug",
	slog.LevelInfo:     "info",
	slog.LevelWarn:     "warning",
	slog.LevelError:    "error",
	slog.LevelCritical: "error",
}

// Logger is a fixed-capacity ring of messages. Once full, each new message
// overwrites the oldest one.
type Logger struct {
	mu    sync.RWMutex
	buf   []Message
	next  int
	count int
}

// New returns a ring holding at most size messages.
func New(size int) *Logger {
	if size <= 0 {
		size = 1
	}
	return &Logger{buf: make([]Message, size)}
}

func (l *Logger) add(level slog.Level, text string) {
	msg := Message{Timestamp: time.Now(), Text: text, Level: levelNames[level]}

	l.mu.Lock()
	l.buf[l.next] = msg
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
	l.mu.Unlock()
}

func (l *Logger) Info(text string)    { l.add(slog.LevelInfo, text) }
func (l *Logger) Warning(text string) { l.add(slog.LevelWarn, text) }
func (l *Logger) Error(text string)   { l.add(slog.LevelError, text) }

// Write stores each line formatted by the slog backend as one message. The
// level is read from the bracketed tag slog puts after the timestamp.
func (l *Logger) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		text := string(line)
		l.add(levelOf(text), text)
	}
	return len(p), nil
}

func levelOf(line string) slog.Level {
	for lvl := range levelNames {
		if strings.Contains(line, "["+lvl.String()+"]") {
			return lvl
		}
	}
	return slog.LevelInfo
}

// Len reports how many messages the ring currently holds.
func (l *Logger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// GetRecent returns up to n messages, newest first. A negative n returns
// everything held.
func (l *Logger) GetRecent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n < 0 || n > l.count {
		n = l.count
	}
	out := make([]Message, n)
	idx := l.next
	for i := range out {
		idx = (idx - 1 + len(l.buf)) % len(l.buf)
		out[i] = l.buf[idx]
	}
	return out
}
