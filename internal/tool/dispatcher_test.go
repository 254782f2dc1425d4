package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"taskchat/internal/llm"
)

func newTestDispatcher(tools ...Tool) *Dispatcher {
	r := NewRegistry()
	for _, t := range tools {
		r.Register(t)
	}
	return NewDispatcher(r, zap.NewNop())
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher()

	res := d.Dispatch(context.Background(), 1, llm.ToolCall{
		ID:        "call-1",
		Name:      "launch_rocket",
		Arguments: json.RawMessage(`{}`),
	})
	if res.Status != StatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if !strings.Contains(res.Message, "launch_rocket") {
		t.Fatalf("expected message to name the tool, got %q", res.Message)
	}
}

func TestDispatchExecuteErrorBecomesResult(t *testing.T) {
	d := newTestDispatcher(&mockTool{
		name: "broken",
		execute: func(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
			return nil, errors.New("disk on fire")
		},
	})

	res := d.Dispatch(context.Background(), 1, llm.ToolCall{Name: "broken", Arguments: json.RawMessage(`{}`)})
	if res.Status != StatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if !strings.Contains(res.Message, "disk on fire") {
		t.Fatalf("expected underlying error in message, got %q", res.Message)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	d := newTestDispatcher(&mockTool{
		name: "panicky",
		execute: func(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
			panic("boom")
		},
	})

	res := d.Dispatch(context.Background(), 1, llm.ToolCall{Name: "panicky", Arguments: json.RawMessage(`{}`)})
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.Status != StatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
}

// A model may try to act on behalf of another user by smuggling a user_id
// into the tool arguments. The dispatcher must hand tools the authenticated
// id and nothing else.
func TestDispatchIgnoresUserIDInArguments(t *testing.T) {
	var seenUserID int64
	d := newTestDispatcher(&mockTool{
		name: "whoami",
		execute: func(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
			seenUserID = userID
			return Success("ok", nil), nil
		},
	})

	res := d.Dispatch(context.Background(), 42, llm.ToolCall{
		Name:      "whoami",
		Arguments: json.RawMessage(`{"user_id": 9999}`),
	})
	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %s: %s", res.Status, res.Message)
	}
	if seenUserID != 42 {
		t.Fatalf("expected authenticated user 42, got %d", seenUserID)
	}
}

func TestDispatchSuccessPassesThrough(t *testing.T) {
	d := newTestDispatcher(&mockTool{
		name: "echo",
		execute: func(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
			return Success("done", map[string]string{"k": "v"}), nil
		},
	})

	res := d.Dispatch(context.Background(), 1, llm.ToolCall{Name: "echo", Arguments: json.RawMessage(`{}`)})
	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", res.Status)
	}
	if res.Message != "done" {
		t.Fatalf("expected message 'done', got %q", res.Message)
	}
}
