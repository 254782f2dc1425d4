package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the structured outcome of a tool execution. It is always
// JSON-encodable so it can be fed back to the model as a tool message.
type Result struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

// Success builds a success result.
func Success(message string, data any) *Result {
	return &Result{Status: StatusSuccess, Data: data, Message: message}
}

// Errorf builds an error result.
func Errorf(format string, args ...any) *Result {
	return &Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Tool is the interface for operations exposed to the model.
//
// Execute receives the authenticated user's id as a separate parameter,
// never from the model's arguments: each tool parses args into its own
// typed parameter struct, and those structs deliberately have no user_id
// field, so whatever the model claims about identity is discarded.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage // JSON Schema
	Execute(ctx context.Context, userID int64, args json.RawMessage) (*Result, error)
}
