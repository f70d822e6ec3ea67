package engine

import (
	"fmt"
	"sync"
	"time"
)

// OpType represents the type of operation.
type OpType string

const (
	OpSearch  OpType = "search"
	OpSpawn   OpType = "spawn"
	OpWalk    OpType = "walk"
	OpReplace OpType = "replace"
	OpCancel  OpType = "cancel"
)

// LogLevel represents severity level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// OpLog is a single operation log entry.
type OpLog struct {
	ID       int64     `json:"id"`
	Time     time.Time `json:"time"`
	Level    LogLevel  `json:"level"`
	Type     OpType    `json:"type"`
	Target   string    `json:"target,omitempty"`
	Message  string    `json:"message"`
	Duration int64     `json:"duration_ms,omitempty"`
	Success  bool      `json:"success"`
	Details  string    `json:"details,omitempty"`
	Count    int       `json:"count,omitempty"`
}

// OpLogger stores recent operation logs in memory.
type OpLogger struct {
	mu      sync.RWMutex
	logs    []OpLog
	maxLogs int
	nextID  int64
}

// NewOpLogger creates a new operation logger.
func NewOpLogger(maxLogs int) *OpLogger {
	if maxLogs <= 0 {
		maxLogs = 500
	}
	return &OpLogger{
		logs:    make([]OpLog, 0, maxLogs),
		maxLogs: maxLogs,
		nextID:  1,
	}
}

// Log adds a new operation log entry.
func (l *OpLogger) Log(opType OpType, target, message string, duration time.Duration, success bool, details string) {
	level := LevelInfo
	if !success {
		level = LevelError
	}
	l.log(level, opType, target, message, duration, success, details, 0)
}

func (l *OpLogger) log(level LogLevel, opType OpType, target, message string, duration time.Duration, success bool, details string, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := OpLog{
		ID:       l.nextID,
		Time:     time.Now(),
		Level:    level,
		Type:     opType,
		Target:   target,
		Message:  message,
		Duration: duration.Milliseconds(),
		Success:  success,
		Details:  details,
		Count:    count,
	}
	l.nextID++

	l.logs = append(l.logs, entry)
	if len(l.logs) > l.maxLogs {
		l.logs = l.logs[len(l.logs)-l.maxLogs:]
	}
}

// Infof logs a formatted info message.
func (l *OpLogger) Infof(opType OpType, target, format string, args ...any) {
	l.log(LevelInfo, opType, target, fmt.Sprintf(format, args...), 0, true, "", 0)
}

// Warnf logs a formatted warning message.
func (l *OpLogger) Warnf(opType OpType, target, format string, args ...any) {
	l.log(LevelWarn, opType, target, fmt.Sprintf(format, args...), 0, false, "", 0)
}

// Errorf logs a formatted error message.
func (l *OpLogger) Errorf(opType OpType, target, format string, args ...any) {
	l.log(LevelError, opType, target, fmt.Sprintf(format, args...), 0, false, "", 0)
}

// LogWithCount logs with a result count.
func (l *OpLogger) LogWithCount(opType OpType, target, message string, duration time.Duration, count int) {
	l.log(LevelInfo, opType, target, message, duration, true, "", count)
}

// Recent returns the most recent n logs (newest first).
func (l *OpLogger) Recent(n int) []OpLog {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.logs) {
		n = len(l.logs)
	}

	result := make([]OpLog, n)
	for i := 0; i < n; i++ {
		result[i] = l.logs[len(l.logs)-1-i]
	}
	return result
}

// Since returns logs after a given ID, newest first. Used for incremental
// fetching by the management endpoints.
func (l *OpLogger) Since(afterID int64) []OpLog {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []OpLog
	for i := len(l.logs) - 1; i >= 0; i-- {
		if l.logs[i].ID > afterID {
			result = append(result, l.logs[i])
		}
	}
	return result
}

// Clear clears all logs.
func (l *OpLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = l.logs[:0]
}
