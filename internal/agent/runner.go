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
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"landuse-agent/internal/logging"
	"landuse-agent/internal/tools"
)

// Runner drives one session request through the reasoning loop.
type Runner struct {
	reasoner Reasoner
	registry *tools.Registry
	store    *Store

	mu           sync.RWMutex
	maxSteps     int
	budget       time.Duration
	historyLimit int
}

// NewRunner wires the loop. maxSteps bounds how many reasoning rounds one
// request may take; budget bounds its wall-clock time.
func NewRunner(reasoner Reasoner, registry *tools.Registry, store *Store, maxSteps int, budget time.Duration, historyLimit int) *Runner {
	return &Runner{
		reasoner:     reasoner,
		registry:     registry,
		store:        store,
		maxSteps:     maxSteps,
		budget:       budget,
		historyLimit: historyLimit,
	}
}

// SetBudgets replaces the loop budgets. A request already running keeps the
// budgets it started with.
func (r *Runner) SetBudgets(maxSteps int, budget time.Duration, historyLimit int) {
	r.mu.Lock()
	r.maxSteps = maxSteps
	r.budget = budget
	r.historyLimit = historyLimit
	r.mu.Unlock()
}

// budgets reads the current loop budgets.
func (r *Runner) budgets() (int, time.Duration, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxSteps, r.budget, r.historyLimit
}

// Run processes one user message. It acquires the session, drives the loop
// and always delivers exactly one terminal event on the emitter before
// returning. ErrSessionBusy comes back immediately, before any event is
// emitted, so callers can refuse the request without touching the stream.
func (r *Runner) Run(ctx context.Context, s *Session, message string, em *Emitter) error {
	if err := r.store.Acquire(s); err != nil {
		return err
	}
	defer r.store.Release(s)

	// Budgets are read once so a config reload mid-request cannot move the
	// goalposts under a running loop.
	maxSteps, budget, historyLimit := r.budgets()

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	userTurn := newTurn(RoleUser)
	userTurn.Text = message
	s.append(historyLimit, userTurn)

	logging.Debug("request started", "session_id", s.ID)

	for step := 0; step < maxSteps; step++ {
		s.setState(StateReasoning)
		decision, err := r.reasoner.Reason(ctx, s.History(), r.registry.List())
		if err != nil {
			r.emitFailure(ctx, em, err)
			return nil
		}

		if len(decision.ToolCalls) == 0 {
			r.finalize(s, em, decision.Text, false, historyLimit)
			return nil
		}

		assistant := newTurn(RoleAssistant)
		assistant.Text = decision.Text
		assistant.ToolCalls = decision.ToolCalls
		s.append(historyLimit, assistant)
		streamText(em, decision.Text)

		if !r.dispatch(ctx, s, em, decision.ToolCalls, historyLimit) {
			return nil
		}
	}

	// Step budget exhausted: one last reasoning round with no tools on
	// offer, so the model has to answer from what it gathered.
	s.setState(StateFinalizing)
	notice := newTurn(RoleUser)
	notice.Text = "You have reached the tool call limit for this request. " +
		"Answer the question now using the results you already have."
	s.append(historyLimit, notice)

	decision, err := r.reasoner.Reason(ctx, s.History(), nil)
	if err != nil {
		r.emitFailure(ctx, em, err)
		return nil
	}
	r.finalize(s, em, decision.Text, true, historyLimit)
	return nil
}

// dispatch executes the requested tool calls in order. It reports false
// when the request was terminated mid-dispatch, with the terminal event
// already emitted.
func (r *Runner) dispatch(ctx context.Context, s *Session, em *Emitter, calls []ToolCall, historyLimit int) bool {
	for _, call := range calls {
		s.setState(StateToolDispatch)
		em.ToolCall(call)

		s.setState(StateToolAwait)
		resp, err := r.registry.Execute(ctx, call.Name, call.Args)

		if ctx.Err() != nil {
			// The conversation must stay well-formed even on abort, so
			// the pending call gets a synthesized result before the
			// terminal error.
			cancelled := ToolResult{
				CallID:    call.ID,
				Name:      call.Name,
				Content:   "Tool call cancelled before completion.",
				IsError:   true,
				Cancelled: true,
			}
			appendToolResult(s, cancelled, historyLimit)
			em.ToolResult(cancelled)
			r.emitFailure(ctx, em, ctx.Err())
			return false
		}

		result := ToolResult{CallID: call.ID, Name: call.Name}
		if err != nil {
			logging.Error("tool handler failed", "tool", call.Name, "error", err.Error())
			result.Content = "Tool execution failed: " + call.Name
			result.IsError = true
		} else {
			result.Content = resp.Content
			result.IsError = resp.IsError
		}
		appendToolResult(s, result, historyLimit)
		em.ToolResult(result)
	}
	return true
}

func appendToolResult(s *Session, result ToolResult, historyLimit int) {
	turn := newTurn(RoleTool)
	turn.ToolResult = &result
	s.append(historyLimit, turn)
}

// finalize records the answer and terminates the stream.
func (r *Runner) finalize(s *Session, em *Emitter, text string, truncated bool, historyLimit int) {
	s.setState(StateFinalizing)
	if text == "" {
		text = "I could not produce an answer for this question."
	}
	assistant := newTurn(RoleAssistant)
	assistant.Text = text
	s.append(historyLimit, assistant)

	streamText(em, text)
	em.Final(FinalPayload{Text: text, Truncated: truncated})
	logging.Debug("request finished", "session_id", s.ID, "truncated", truncated)
}

// emitFailure maps a loop failure onto the terminal error event.
func (r *Runner) emitFailure(ctx context.Context, em *Emitter, err error) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		em.Error("budget_exceeded", "The request exceeded its time budget.")
	case errors.Is(ctx.Err(), context.Canceled):
		em.Error("cancelled", "The request was cancelled.")
	default:
		logging.Error("reasoning failed", "error", err.Error())
		em.Error("provider", "The language model request failed.")
	}
}

// streamText chunks assistant prose into token events, splitting on
// whitespace so consumers see steady progress.
func streamText(em *Emitter, text string) {
	if text == "" {
		return
	}
	words := strings.SplitAfter(text, " ")
	var chunk strings.Builder
	for _, w := range words {
		chunk.WriteString(w)
		if chunk.Len() >= 24 {
			em.Token(chunk.String())
			chunk.Reset()
		}
	}
	if chunk.Len() > 0 {
		em.Token(chunk.String())
	}
}

// NewCallID labels tool calls that arrive from providers without one.
func NewCallID() string { return uuid.NewString() }
