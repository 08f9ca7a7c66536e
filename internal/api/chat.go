/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"landuse-agent/internal/agent"
	"landuse-agent/internal/logging"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Truncated bool   `json:"truncated,omitempty"`
	ToolCalls int    `json:"tool_calls"`
}

// startRequest validates the chat payload and launches the runner. The
// returned emitter carries the event stream; the error channel resolves to
// the runner's synchronous verdict, which is how a busy session is detected
// before any event flows.
func (s *Server) startRequest(w http.ResponseWriter, r *http.Request) (*agent.Emitter, *agent.Session, chan error, bool) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return nil, nil, nil, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return nil, nil, nil, false
	}

	session := s.sessions.GetOrCreate(req.SessionID)
	em := agent.NewEmitter(256)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.runner.Run(r.Context(), session, req.Message, em)
	}()
	return em, session, errCh, true
}

// handleChat answers a message in one blocking response.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	em, session, errCh, ok := s.startRequest(w, r)
	if !ok {
		return
	}

	resp := chatResponse{SessionID: session.ID}
	var failure *agent.ErrorPayload
	absorb := func(ev agent.Event) {
		switch ev.Type {
		case agent.EventToolCall:
			resp.ToolCalls++
		case agent.EventFinal:
			payload := ev.Payload.(agent.FinalPayload)
			resp.Response = payload.Text
			resp.Truncated = payload.Truncated
		case agent.EventError:
			payload := ev.Payload.(agent.ErrorPayload)
			failure = &payload
		}
	}

	// A busy session emits nothing and never closes the stream, so the
	// refusal has to be caught before draining.
	select {
	case err := <-errCh:
		if errors.Is(err, agent.ErrSessionBusy) {
			writeError(w, http.StatusConflict, "session is processing another request")
			return
		}
	case ev, chOpen := <-em.Events():
		if chOpen {
			absorb(ev)
		}
	}
	for ev := range em.Events() {
		absorb(ev)
	}

	if failure != nil {
		status := http.StatusBadGateway
		switch failure.Kind {
		case "cancelled":
			status = http.StatusRequestTimeout
		case "budget_exceeded":
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, failure.Message)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChatStream answers a message as a server-sent event stream. Each
// event is one "data: {json}\n\n" frame; the stream opens with a start frame
// carrying the session id and closes with "data: [DONE]".
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	em, session, errCh, ok := s.startRequest(w, r)
	if !ok {
		return
	}

	// Wait for the first event before committing to the stream, so a busy
	// session still gets a plain 409.
	var first *agent.Event
	select {
	case ev, chOpen := <-em.Events():
		if chOpen {
			first = &ev
		}
	case err := <-errCh:
		if errors.Is(err, agent.ErrSessionBusy) {
			writeError(w, http.StatusConflict, "session is processing another request")
			return
		}
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSE(w, map[string]interface{}{"type": "start", "session_id": session.ID})
	flusher.Flush()
	if first != nil {
		writeSSE(w, first)
		flusher.Flush()
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case ev, chOpen := <-em.Events():
			if !chOpen {
				fmt.Fprint(w, "data: [DONE]\n\n")
				flusher.Flush()
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		case <-heartbeat.C:
			// SSE comment line; keeps proxies from closing an idle stream
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Warn("failed to marshal stream event", "error", err.Error())
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// handleClearHistory drops a session's turns without ending the session.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if session, ok := s.sessions.Get(sessionID); ok {
		session.ClearHistory()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "History cleared for session " + sessionID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "No history found for session " + sessionID,
	})
}

// handleChatStatus reports the chat service configuration and load.
func (s *Server) handleChatStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"provider": s.llmInfo.Provider,
		"model":    s.llmInfo.Model,
		"sessions": s.sessions.Len(),
	})
}
