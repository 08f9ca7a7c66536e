/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"landuse-agent/internal/logging"
	"landuse-agent/internal/sqlcheck"
)

// ErrKind classifies executor failures for callers that map them to
// user-facing messages.
type ErrKind string

const (
	ErrKindTimeout          ErrKind = "timeout"
	ErrKindResourceExceeded ErrKind = "resource_exceeded"
	ErrKindDriver           ErrKind = "driver"
)

// ExecError is a sanitized execution failure. Message never echoes the
// statement text; the raw driver error stays wrapped for logs only.
type ExecError struct {
	Kind    ErrKind
	Message string
	cause   error
}

func (e *ExecError) Error() string { return e.Message }

func (e *ExecError) Unwrap() error { return e.cause }

// ErrVerdictNotAccepted means a caller tried to execute a statement the
// validator rejected, or skipped validation entirely. It indicates a bug in
// the caller, not a bad query.
var ErrVerdictNotAccepted = errors.New("statement was not accepted by validation")

// QueryResult is the shaped result set handed to tools and the HTTP layer.
type QueryResult struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated"`
	ElapsedMs int64           `json:"elapsed_ms"`
}

// Executor runs validated statements with a wall-clock timeout and a hard
// row cap. Both limits can be swapped at runtime by a config reload; each
// query reads them once at its start.
type Executor struct {
	store *Store

	mu      sync.RWMutex
	timeout time.Duration
	maxRows int
}

// NewExecutor returns an executor with the given per-query limits.
func NewExecutor(store *Store, timeout time.Duration, maxRows int) *Executor {
	return &Executor{store: store, timeout: timeout, maxRows: maxRows}
}

// SetLimits replaces the per-query limits. In-flight queries keep the limits
// they started with.
func (e *Executor) SetLimits(timeout time.Duration, maxRows int) {
	e.mu.Lock()
	e.timeout = timeout
	e.maxRows = maxRows
	e.mu.Unlock()
}

// limits reads the current timeout and row cap.
func (e *Executor) limits() (time.Duration, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.timeout, e.maxRows
}

// MaxRows reports the configured row cap.
func (e *Executor) MaxRows() int {
	_, maxRows := e.limits()
	return maxRows
}

// Dialect reports which SQL dialect the underlying store speaks.
func (e *Executor) Dialect() string { return e.store.Dialect() }

// Execute runs an accepted statement and shapes the result. Only verdicts
// produced by the validator may be passed in; anything else is refused.
func (e *Executor) Execute(ctx context.Context, verdict sqlcheck.Verdict) (*QueryResult, error) {
	if !verdict.Accepted || verdict.Normalized == "" {
		return nil, ErrVerdictNotAccepted
	}

	timeout, maxRows := e.limits()
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.store.DB().QueryContext(queryCtx, verdict.Normalized)
	if err != nil {
		return nil, classify(queryCtx, err, timeout)
	}
	defer rows.Close()

	result, err := collect(rows, maxRows)
	if err != nil {
		return nil, classify(queryCtx, err, timeout)
	}
	result.ElapsedMs = time.Since(start).Milliseconds()

	logging.Debug("query executed",
		"rows", result.RowCount, "truncated", result.Truncated,
		"elapsed_ms", result.ElapsedMs)
	return result, nil
}

// ExecuteTrusted runs an application-authored statement with bind
// parameters. It bypasses validation, so it must never receive text that
// originated outside the codebase; model and user SQL go through Execute.
func (e *Executor) ExecuteTrusted(ctx context.Context, query string, args ...interface{}) (*QueryResult, error) {
	timeout, maxRows := e.limits()
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.store.DB().QueryContext(queryCtx, query, args...)
	if err != nil {
		return nil, classify(queryCtx, err, timeout)
	}
	defer rows.Close()

	result, err := collect(rows, maxRows)
	if err != nil {
		return nil, classify(queryCtx, err, timeout)
	}
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result, nil
}

// collect drains the result set up to the row cap. One extra row is fetched
// to distinguish an exactly-full result from a truncated one.
func collect(rows *sql.Rows, maxRows int) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: columns, Rows: [][]interface{}{}}
	for rows.Next() {
		if maxRows > 0 && result.RowCount >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			// Drivers return []byte for text under some column types;
			// strings serialize cleanly everywhere downstream.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
		result.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// classify maps a raw driver failure onto the sanitized error taxonomy.
func classify(ctx context.Context, err error, timeout time.Duration) *ExecError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ExecError{
			Kind:    ErrKindTimeout,
			Message: fmt.Sprintf("query exceeded the %s execution limit", timeout),
			cause:   err,
		}
	case errors.Is(err, context.Canceled):
		return &ExecError{
			Kind:    ErrKindDriver,
			Message: "query was cancelled",
			cause:   err,
		}
	default:
		logging.Warn("query failed", "error", err.Error())
		kind := ErrKindDriver
		if isResourceError(err) {
			kind = ErrKindResourceExceeded
		}
		return &ExecError{
			Kind:    kind,
			Message: "query failed: " + sanitizeDriverMessage(err),
			cause:   err,
		}
	}
}

// isResourceError spots driver failures caused by exhausting server-side
// resources rather than by a bad statement.
func isResourceError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"out of memory", "temp file limit", "too many connections"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// sanitizeDriverMessage keeps the first line of a driver error. Multi-line
// driver output can include server context not meant for end users.
func sanitizeDriverMessage(err error) string {
	msg := err.Error()
	for i := 0; i < len(msg); i++ {
		if msg[i] == '\n' {
			return msg[:i]
		}
	}
	return msg
}
