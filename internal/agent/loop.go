package agent

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"taskchat/internal/config"
	"taskchat/internal/eventbus"
	"taskchat/internal/llm"
	"taskchat/internal/store"
	"taskchat/internal/tool"
)

// turnState is the orchestrator's position in a single turn.
type turnState int

const (
	stateAwaitingModel turnState = iota
	stateExecutingTools
	stateDone
	stateDegraded
)

// DegradedResponse is returned when a turn cannot be completed, either
// because the iteration budget ran out or the provider failed past retries.
const DegradedResponse = "I apologize, but I'm having trouble completing that request. Please try breaking it down into smaller steps."

// TurnResult is the outcome of one orchestrated turn.
type TurnResult struct {
	Response  string
	ToolCalls []store.ToolCallRecord
	Degraded  bool
}

// Orchestrator drives the model/tool loop for one turn: ask the model,
// execute whatever tools it requests, feed the results back, repeat. The
// loop is bounded by MaxIterations; hitting the bound yields a degraded
// response rather than an error, since the user's message is already
// persisted by the caller and the conversation must stay usable.
type Orchestrator struct {
	provider   llm.Provider
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	cfg        config.AgentConfig
	bus        *eventbus.Bus
	logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(
	provider llm.Provider,
	registry *tool.Registry,
	dispatcher *tool.Dispatcher,
	cfg config.AgentConfig,
	bus *eventbus.Bus,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provider:   provider,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		bus:        bus,
		logger:     logger,
	}
}

// Run executes one turn for the authenticated user over the given working
// context. It never returns an error from the model or tool side; those
// degrade into a usable TurnResult. The only hard failure is a cancelled
// context.
func (o *Orchestrator) Run(ctx context.Context, userID int64, messages []llm.Message) (*TurnResult, error) {
	var (
		state     = stateAwaitingModel
		result    = &TurnResult{}
		resp      *llm.LLMResponse
		iteration int
	)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch state {
		case stateAwaitingModel:
			iteration++
			if iteration > o.cfg.MaxIterations {
				o.logger.Warn("iteration budget exhausted",
					zap.Int64("user_id", userID),
					zap.Int("max_iterations", o.cfg.MaxIterations))
				state = stateDegraded
				continue
			}

			req := &llm.ChatRequest{
				Messages:     messages,
				Tools:        o.registry.Definitions(),
				MaxTokens:    o.cfg.MaxTokens,
				Temperature:  o.cfg.Temperature,
				SystemPrompt: o.cfg.SystemPrompt,
			}
			o.bus.Publish(eventbus.TopicLLMRequest, req)

			var err error
			resp, err = o.provider.Chat(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				o.logger.Error("model call failed", zap.Error(err))
				state = stateDegraded
				continue
			}
			o.bus.Publish(eventbus.TopicLLMResponse, resp)

			if len(resp.ToolCalls) == 0 {
				state = stateDone
			} else {
				state = stateExecutingTools
			}

		case stateExecutingTools:
			messages = append(messages, llm.Message{
				Role:      store.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})

			for _, tc := range resp.ToolCalls {
				o.bus.Publish(eventbus.TopicToolCall, tc)
				res := o.dispatcher.Dispatch(ctx, userID, tc)
				o.bus.Publish(eventbus.TopicToolResult, res)

				encoded, err := json.Marshal(res)
				if err != nil {
					encoded = []byte(`{"status":"error","message":"failed to encode tool result"}`)
				}
				result.ToolCalls = append(result.ToolCalls, store.ToolCallRecord{
					CallID:    tc.ID,
					ToolName:  tc.Name,
					Arguments: tc.Arguments,
					Result:    encoded,
				})
				messages = append(messages, llm.Message{
					Role:       store.RoleTool,
					Content:    string(encoded),
					ToolCallID: tc.ID,
				})
			}
			state = stateAwaitingModel

		case stateDone:
			result.Response = resp.Content
			return result, nil

		case stateDegraded:
			result.Response = DegradedResponse
			result.Degraded = true
			return result, nil
		}
	}
}
