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
	"testing"
	"time"
)

func TestStoreGetOrCreate(t *testing.T) {
	store := NewStore(time.Hour)

	s := store.GetOrCreate("")
	if s.ID == "" {
		t.Fatal("new session has no id")
	}
	if again := store.GetOrCreate(s.ID); again != s {
		t.Error("GetOrCreate returned a different session for the same id")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}

	other := store.GetOrCreate("explorer-session")
	if other.ID != "explorer-session" {
		t.Errorf("ID = %q, want explorer-session", other.ID)
	}
}

func TestStoreLazyExpiry(t *testing.T) {
	store := NewStore(10*time.Millisecond)
	s := store.GetOrCreate("short")

	if _, ok := store.Get("short"); !ok {
		t.Fatal("fresh session not found")
	}
	time.Sleep(25 * time.Millisecond)
	if _, ok := store.Get("short"); ok {
		t.Fatal("expired session still returned")
	}

	// GetOrCreate under the same id must hand out a fresh session
	replacement := store.GetOrCreate("short")
	if replacement == s {
		t.Error("expired session was resurrected")
	}
	if len(replacement.History()) != 0 {
		t.Error("replacement session inherited history")
	}
}

func TestStoreBusySessionNotEvicted(t *testing.T) {
	store := NewStore(10*time.Millisecond)
	s := store.GetOrCreate("busy")
	if err := store.Acquire(s); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	time.Sleep(25 * time.Millisecond)
	store.sweep()
	if _, ok := store.Get("busy"); !ok {
		t.Fatal("busy session was evicted mid-request")
	}

	// release resets the idle clock; the session survives until a fresh TTL
	// elapses, then the sweep takes it
	store.Release(s)
	if _, ok := store.Get("busy"); !ok {
		t.Fatal("released session evicted immediately")
	}
	time.Sleep(25 * time.Millisecond)
	store.sweep()
	if store.Len() != 0 {
		t.Error("idle session survived the sweep past its TTL")
	}
}

func TestStoreAcquireSerializes(t *testing.T) {
	store := NewStore(time.Hour)
	s := store.GetOrCreate("")

	if err := store.Acquire(s); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := store.Acquire(s); err != ErrSessionBusy {
		t.Fatalf("second Acquire = %v, want ErrSessionBusy", err)
	}
	store.Release(s)
	if err := store.Acquire(s); err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
}

func TestSessionHistoryWindow(t *testing.T) {
	s := &Session{ID: "w"}
	for i := 0; i < 30; i++ {
		turn := newTurn(RoleUser)
		turn.Text = "m"
		s.append(20, turn)
	}
	if got := len(s.History()); got != 20 {
		t.Errorf("history length = %d, want 20", got)
	}

	s.ClearHistory()
	if len(s.History()) != 0 {
		t.Error("ClearHistory left turns behind")
	}
}

func TestSessionHistoryTrimKeepsToolPairs(t *testing.T) {
	s := &Session{ID: "pairs"}
	limit := 2

	user := newTurn(RoleUser)
	user.Text = "how much forest is lost?"
	asst := newTurn(RoleAssistant)
	asst.ToolCalls = []ToolCall{{ID: "call_1", Name: "run_sql"}}
	result := newTurn(RoleTool)
	result.ToolResult = &ToolResult{CallID: "call_1", Name: "run_sql", Content: "{}"}
	final := newTurn(RoleAssistant)
	final.Text = "about 120 acres"

	for _, turn := range []Turn{user, asst, result, final} {
		s.append(limit, turn)
	}

	// The window is over limit here, but a tool result must never be
	// separated from the assistant turn that requested it.
	history := s.History()
	if len(history) == 0 {
		t.Fatal("history is empty")
	}
	if history[0].Role != RoleUser {
		t.Fatalf("history starts with a %s turn, want user", history[0].Role)
	}
	for i, turn := range history {
		if turn.Role != RoleTool {
			continue
		}
		if i == 0 || len(history[i-1].ToolCalls) == 0 ||
			history[i-1].ToolCalls[0].ID != turn.ToolResult.CallID {
			t.Errorf("tool result at %d has no matching tool-call turn before it", i)
		}
	}

	// Later user turns are boundaries the trim can finally cut at.
	followup := newTurn(RoleUser)
	followup.Text = "and urban growth?"
	s.append(limit, followup)
	last := newTurn(RoleUser)
	last.Text = "which county?"
	s.append(limit, last)

	history = s.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Text != "and urban growth?" || history[1].Text != "which county?" {
		t.Errorf("window kept the wrong turns: %q, %q", history[0].Text, history[1].Text)
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(time.Hour)
	s := store.GetOrCreate("gone")
	_ = s
	store.Delete("gone")
	if _, ok := store.Get("gone"); ok {
		t.Error("deleted session still present")
	}
}

func TestEmitterTerminalDiscipline(t *testing.T) {
	em := NewEmitter(8)
	em.Token("a")
	em.Final(FinalPayload{Text: "a"})
	em.Token("dropped")
	em.Error("internal", "dropped")

	var events []Event
	for ev := range em.Events() {
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Seq != 0 || events[1].Seq != 1 {
		t.Errorf("seqs = %d,%d", events[0].Seq, events[1].Seq)
	}
	if events[1].Type != EventFinal {
		t.Errorf("terminal = %q", events[1].Type)
	}
}
