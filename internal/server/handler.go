package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"taskchat/internal/agent"
	"taskchat/internal/store"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ConversationID int64  `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ChatHandler serves the conversational endpoints. It is stateless across
// requests; everything durable lives in the chat service's store.
type ChatHandler struct {
	svc             *agent.Service
	auth            Authenticator
	maxMessageChars int
	logger          *zap.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc *agent.Service, auth Authenticator, maxMessageChars int, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		svc:             svc,
		auth:            auth,
		maxMessageChars: maxMessageChars,
		logger:          logger,
	}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("GET /conversations", h.handleConversations)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// decodeJSON decodes the request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "missing or invalid credentials")
		return
	}

	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "message must not be empty")
		return
	}
	if utf8.RuneCountInString(req.Message) > h.maxMessageChars {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "message is too long")
		return
	}

	res, err := h.svc.Chat(r.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return
		}
		h.logger.Error("chat turn failed",
			zap.Int64("user_id", userID),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err))
		writeError(w, h.logger, http.StatusServiceUnavailable, "unavailable", "could not process the message")
		return
	}

	// tool_calls is always present, empty when no tools ran.
	if res.ToolCalls == nil {
		res.ToolCalls = []store.ToolCallRecord{}
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *ChatHandler) handleConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "missing or invalid credentials")
		return
	}

	convs, err := h.svc.Conversations(r.Context(), userID, 100)
	if err != nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "unavailable", "could not list conversations")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"conversations": convs})
}

func (h *ChatHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "unavailable", "store unreachable")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}
