// Package logger keeps a bounded, thread-safe window of recent status
// messages for the /api/logs endpoint and mirrors each one to the process
// log.
package logger

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Level of a message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message represents a single log message
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Level     Level     `json:"level"`
}

// Logger manages in-memory log messages
type Logger struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
	mirror   bool
}

// New creates a new logger with specified max message count
func New(maxSize int) *Logger {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Logger{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
		mirror:   true,
	}
}

// Quiet stops mirroring messages to the process log.
func (l *Logger) Quiet() *Logger {
	l.mu.Lock()
	l.mirror = false
	l.mu.Unlock()
	return l
}

// Log adds a new message to the logger
func (l *Logger) Log(level Level, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, Message{
		Timestamp: time.Now(),
		Text:      text,
		Level:     level,
	})

	// Keep only the last maxSize messages
	if len(l.messages) > l.maxSize {
		l.messages = l.messages[len(l.messages)-l.maxSize:]
	}

	if l.mirror {
		switch level {
		case LevelWarning:
			log.Printf("WARN: %s", text)
		case LevelError:
			log.Printf("ERROR: %s", text)
		default:
			log.Printf("INFO: %s", text)
		}
	}
}

func (l *Logger) Infof(format string, args ...any) {
	l.Log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.Log(LevelWarning, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Log(LevelError, fmt.Sprintf(format, args...))
}

// GetRecent returns the most recent n messages (newest first)
func (l *Logger) GetRecent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.messages) {
		n = len(l.messages)
	}

	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = l.messages[len(l.messages)-1-i]
	}

	return result
}
