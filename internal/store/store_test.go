package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateConversationAllocatesDistinctIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		id, err := s.CreateConversation(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate conversation id %d", id)
		}
		seen[id] = true
	}
}

func TestAppendAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}

	toolCalls := []ToolCallRecord{{
		CallID:    "call_1",
		ToolName:  "add_task",
		Arguments: json.RawMessage(`{"title":"buy milk"}`),
		Result:    json.RawMessage(`{"status":"success","message":"created"}`),
	}}

	if _, err := s.Append(ctx, conv, 7, RoleUser, "add buy milk", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, conv, 7, RoleAssistant, "Done!", toolCalls); err != nil {
		t.Fatal(err)
	}

	history, err := s.All(ctx, conv, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != RoleUser || history[0].Content != "add buy milk" {
		t.Fatalf("unexpected first message: %+v", history[0])
	}
	if history[0].ToolCalls != nil {
		t.Fatal("user message should have no tool calls")
	}

	asst := history[1]
	if len(asst.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(asst.ToolCalls))
	}
	tc := asst.ToolCalls[0]
	if tc.CallID != "call_1" || tc.ToolName != "add_task" {
		t.Fatalf("unexpected tool call: %+v", tc)
	}
	if string(tc.Arguments) != `{"title":"buy milk"}` {
		t.Fatalf("arguments changed in round trip: %s", tc.Arguments)
	}
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Append(context.Background(), 1, 1, "robot", "beep", nil); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestMessagesOrderedChronologically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if _, err := s.Append(ctx, 1, 1, role, "msg", nil); err != nil {
			t.Fatal(err)
		}
	}

	for _, load := range []func() ([]Message, error){
		func() ([]Message, error) { return s.All(ctx, 1, 1) },
		func() ([]Message, error) { return s.Recent(ctx, 1, 1, 4) },
	} {
		msgs, err := load()
		if err != nil {
			t.Fatal(err)
		}
		for i := 1; i < len(msgs); i++ {
			if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
				t.Fatal("messages not in ascending created_at order")
			}
			if msgs[i].ID <= msgs[i-1].ID {
				t.Fatal("messages not in ascending id order")
			}
		}
	}
}

func TestRecentSlidingWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		if _, err := s.Append(ctx, 5, 1, RoleUser, "m", nil); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := s.Recent(ctx, 5, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(msgs))
	}
	// Window keeps the newest rows.
	all, err := s.All(ctx, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[len(msgs)-1].ID != all[len(all)-1].ID {
		t.Fatal("window does not end at the newest message")
	}
}

func TestRecentNonPositiveLimitUsesDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		if _, err := s.Append(ctx, 5, 1, RoleUser, "m", nil); err != nil {
			t.Fatal(err)
		}
	}

	for _, limit := range []int{0, -1} {
		msgs, err := s.Recent(ctx, 5, 1, limit)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != defaultRecentLimit {
			t.Fatalf("limit %d: expected %d messages, got %d", limit, defaultRecentLimit, len(msgs))
		}
	}
}

func TestOwnershipIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two users independently use the same numeric conversation id.
	const sharedID = 99
	if _, err := s.Append(ctx, sharedID, 1, RoleUser, "user A secret", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, sharedID, 2, RoleUser, "user B note", nil); err != nil {
		t.Fatal(err)
	}

	msgsB, err := s.Recent(ctx, sharedID, 2, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgsB) != 1 {
		t.Fatalf("expected 1 message for user B, got %d", len(msgsB))
	}
	if msgsB[0].Content != "user B note" {
		t.Fatalf("user B sees foreign content: %q", msgsB[0].Content)
	}

	// A conversation that is "not yours" reads as empty, not as an error.
	msgs, err := s.Recent(ctx, sharedID, 3, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(msgs))
	}
}

func TestListConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c1, _ := s.CreateConversation(ctx, 1)
	c2, _ := s.CreateConversation(ctx, 1)

	if _, err := s.Append(ctx, c1, 1, RoleUser, "first", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, c2, 1, RoleUser, "second", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, c2, 1, RoleAssistant, "reply", nil); err != nil {
		t.Fatal(err)
	}

	infos, err := s.ListConversations(ctx, 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(infos))
	}
	if infos[0].ConversationID != c2 || infos[0].MessageCount != 2 {
		t.Fatalf("expected most recent conversation first, got %+v", infos[0])
	}

	other, err := s.ListConversations(ctx, 2, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("user 2 should see no conversations, got %d", len(other))
	}
}
