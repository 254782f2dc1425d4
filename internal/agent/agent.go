package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"taskchat/internal/config"
	"taskchat/internal/eventbus"
	"taskchat/internal/llm"
	"taskchat/internal/store"
)

// Service handles one chat turn end to end: conversation bookkeeping,
// history loading, persistence and the orchestrated model loop. It holds no
// per-request state, so any instance can serve any request against the same
// store.
type Service struct {
	cfg    config.AgentConfig
	store  *store.Store
	orch   *Orchestrator
	bus    *eventbus.Bus
	logger *zap.Logger
}

// NewService creates a chat service.
func NewService(cfg config.AgentConfig, st *store.Store, orch *Orchestrator, bus *eventbus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, store: st, orch: orch, bus: bus, logger: logger}
}

// ChatResult is the outcome of one user turn.
type ChatResult struct {
	ConversationID int64                  `json:"conversation_id"`
	Response       string                 `json:"response"`
	ToolCalls      []store.ToolCallRecord `json:"tool_calls"`
}

// fullHistoryHints are phrases that suggest the user is referring back to
// the start of a long conversation, in which case the sliding window is not
// enough context.
var fullHistoryHints = []string{"beginning", "earlier", "first message", "start of"}

func wantsFullHistory(message string) bool {
	lower := strings.ToLower(message)
	for _, hint := range fullHistoryHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// Chat runs one turn for the authenticated user. The user's message is
// persisted before the model is invoked, so intent survives provider
// failures; the assistant's reply, with any recorded tool calls, is
// persisted as a single row afterwards. Persistence errors are returned to
// the caller; model and tool failures degrade into a conversational reply.
func (s *Service) Chat(ctx context.Context, userID, conversationID int64, message string) (*ChatResult, error) {
	if conversationID == 0 {
		id, err := s.store.CreateConversation(ctx, userID)
		if err != nil {
			return nil, err
		}
		conversationID = id
		s.logger.Info("conversation created",
			zap.Int64("conversation_id", conversationID),
			zap.Int64("user_id", userID))
	}

	// An unowned or unknown conversation id loads as empty history, which
	// behaves exactly like a fresh conversation under that id.
	var (
		history []store.Message
		err     error
	)
	if wantsFullHistory(message) {
		history, err = s.store.All(ctx, conversationID, userID)
	} else {
		history, err = s.store.Recent(ctx, conversationID, userID, s.cfg.HistoryWindow)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Append(ctx, conversationID, userID, store.RoleUser, message, nil); err != nil {
		return nil, err
	}
	s.bus.Publish(eventbus.TopicTurnStarted, conversationID)

	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: store.RoleUser, Content: message})

	turn, err := s.orch.Run(ctx, userID, messages)
	if err != nil {
		return nil, err
	}
	if turn.Degraded {
		s.bus.Publish(eventbus.TopicError, turn.Response)
	}

	if _, err := s.store.Append(ctx, conversationID, userID, store.RoleAssistant, turn.Response, turn.ToolCalls); err != nil {
		return nil, err
	}
	s.bus.Publish(eventbus.TopicTurnFinished, conversationID)

	return &ChatResult{
		ConversationID: conversationID,
		Response:       turn.Response,
		ToolCalls:      turn.ToolCalls,
	}, nil
}

// Conversations lists the user's conversations, newest activity first.
func (s *Service) Conversations(ctx context.Context, userID int64, limit int) ([]store.ConversationInfo, error) {
	return s.store.ListConversations(ctx, userID, limit)
}

// Ping reports whether the underlying store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
