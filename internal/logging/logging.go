/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package logging writes one JSON object per line to stderr. Call sites pass
// a message and alternating key/value pairs; everything at or above the
// configured level is emitted. The level comes from LANDUSE_AGENT_LOG_LEVEL
// and can be moved at runtime with SetLevel.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

const envLogLevel = "LANDUSE_AGENT_LOG_LEVEL"

var currentLevel = levelFromEnv()

func levelFromEnv() LogLevel {
	switch strings.ToLower(os.Getenv(envLogLevel)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// emit serializes one entry. A dangling key with no value is dropped.
func emit(level LogLevel, message string, keyvals []interface{}) {
	if level < currentLevel {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
	}
	if len(keyvals) > 1 {
		e.Fields = make(map[string]interface{}, len(keyvals)/2)
		for i := 0; i+1 < len(keyvals); i += 2 {
			e.Fields[fmt.Sprintf("%v", keyvals[i])] = keyvals[i+1]
		}
	}

	line, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to marshal log entry: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, string(line))
}

func Debug(message string, keyvals ...interface{}) {
	emit(LevelDebug, message, keyvals)
}

func Info(message string, keyvals ...interface{}) {
	emit(LevelInfo, message, keyvals)
}

func Warn(message string, keyvals ...interface{}) {
	emit(LevelWarn, message, keyvals)
}

func Error(message string, keyvals ...interface{}) {
	emit(LevelError, message, keyvals)
}

// SetLevel moves the minimum emitted level.
func SetLevel(level LogLevel) {
	currentLevel = level
}

// GetLevel reports the minimum emitted level.
func GetLevel() LogLevel {
	return currentLevel
}
