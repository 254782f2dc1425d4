package agent

import (
	"go.uber.org/zap"

	"taskchat/internal/eventbus"
)

// ObserveBus subscribes a logging observer to the event topics published by
// the orchestrator, the chat service and the router, so every turn leaves a
// structured trace without the publishers knowing about logging.
func ObserveBus(bus *eventbus.Bus, logger *zap.Logger) {
	bus.Subscribe(eventbus.TopicError, func(e eventbus.Event) {
		logger.Warn("turn degraded", zap.Any("cause", e.Payload))
	})
	bus.Subscribe(eventbus.TopicToolCall, func(e eventbus.Event) {
		logger.Info("tool call requested", zap.Any("call", e.Payload))
	})
	bus.Subscribe(eventbus.TopicToolResult, func(e eventbus.Event) {
		logger.Debug("tool result", zap.Any("result", e.Payload))
	})
	bus.Subscribe(eventbus.TopicLLMResponse, func(e eventbus.Event) {
		logger.Debug("model responded", zap.Any("response", e.Payload))
	})
	bus.Subscribe(eventbus.TopicTurnStarted, func(e eventbus.Event) {
		logger.Debug("turn started", zap.Any("conversation_id", e.Payload))
	})
	bus.Subscribe(eventbus.TopicTurnFinished, func(e eventbus.Event) {
		logger.Debug("turn finished", zap.Any("conversation_id", e.Payload))
	})
}
