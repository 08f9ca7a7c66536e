/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package agent

import (
	"sync"
)

// EventType enumerates the stream event kinds, in the order a consumer may
// see them: any number of token, tool_call and tool_result events, then
// exactly one final or error.
type EventType string

const (
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventFinal      EventType = "final"
	EventError      EventType = "error"
)

// Event is one entry of a request's ordered event stream. Seq starts at 0
// and increases by one per event, so a consumer can detect drops.
type Event struct {
	Type    EventType   `json:"type"`
	Seq     int         `json:"seq"`
	Payload interface{} `json:"payload,omitempty"`
}

// FinalPayload is the payload of a final event.
type FinalPayload struct {
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"` // loop or time budget forced the answer
}

// ErrorPayload is the payload of an error event.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Emitter orders one request's events and guarantees exactly one terminal
// event. Emit after the terminal event is dropped; the channel closes once
// the terminal event is delivered.
type Emitter struct {
	mu   sync.Mutex
	seq  int
	ch   chan Event
	done bool
}

// NewEmitter returns an emitter whose channel buffers up to size events.
func NewEmitter(size int) *Emitter {
	return &Emitter{ch: make(chan Event, size)}
}

// Events is the consumer side of the stream.
func (e *Emitter) Events() <-chan Event { return e.ch }

// Token emits one token event.
func (e *Emitter) Token(text string) {
	e.emit(EventToken, text, false)
}

// ToolCall announces a tool dispatch.
func (e *Emitter) ToolCall(call ToolCall) {
	e.emit(EventToolCall, call, false)
}

// ToolResult reports a completed tool call.
func (e *Emitter) ToolResult(result ToolResult) {
	e.emit(EventToolResult, result, false)
}

// Final terminates the stream with the answer.
func (e *Emitter) Final(payload FinalPayload) {
	e.emit(EventFinal, payload, true)
}

// Error terminates the stream with a failure.
func (e *Emitter) Error(kind, message string) {
	e.emit(EventError, ErrorPayload{Kind: kind, Message: message}, true)
}

func (e *Emitter) emit(typ EventType, payload interface{}, terminal bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.ch <- Event{Type: typ, Seq: e.seq, Payload: payload}
	e.seq++
	if terminal {
		e.done = true
		close(e.ch)
	}
}
