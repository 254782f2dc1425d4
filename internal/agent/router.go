package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"taskchat/internal/channel"
	"taskchat/internal/eventbus"
)

// Router connects messaging channels to the chat service. It keeps one
// open conversation per (channel, chat) pair so that consecutive messages
// from the same chat continue the same conversation.
type Router struct {
	mu      sync.Mutex
	svc     *Service
	mgr     *channel.Manager
	bus     *eventbus.Bus
	logger  *zap.Logger
	convs   map[string]int64 // "<channel>/<chat id>" -> conversation id
}

// NewRouter creates a router over the given channel manager.
func NewRouter(svc *Service, mgr *channel.Manager, bus *eventbus.Bus, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		svc:    svc,
		mgr:    mgr,
		bus:    bus,
		logger: logger,
		convs:  make(map[string]int64),
	}
}

// Start subscribes the router to every registered channel.
func (r *Router) Start(ctx context.Context) {
	for name := range r.mgr.List() {
		ch, ok := r.mgr.Get(name)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg channel.InboundMessage) {
			r.bus.Publish(eventbus.TopicInboundMessage, msg)
			r.handle(ctx, msg)
		})
	}
	r.logger.Info("router listening", zap.Int("channels", len(r.mgr.List())))
}

func (r *Router) handle(ctx context.Context, msg channel.InboundMessage) {
	key := msg.ChannelName + "/" + msg.ChatID
	r.mu.Lock()
	convID := r.convs[key]
	r.mu.Unlock()

	res, err := r.svc.Chat(ctx, msg.UserID, convID, msg.Text)
	if err != nil {
		r.logger.Error("turn failed",
			zap.String("channel", msg.ChannelName),
			zap.Int64("user_id", msg.UserID),
			zap.Error(err))
		r.bus.Publish(eventbus.TopicError, err)
		r.reply(ctx, msg, "Sorry, something went wrong. Please try again.")
		return
	}

	r.mu.Lock()
	r.convs[key] = res.ConversationID
	r.mu.Unlock()

	r.reply(ctx, msg, res.Response)
}

func (r *Router) reply(ctx context.Context, msg channel.InboundMessage, text string) {
	ch, ok := r.mgr.Get(msg.ChannelName)
	if !ok {
		r.logger.Error("channel not found", zap.String("channel", msg.ChannelName))
		return
	}
	out := channel.OutboundMessage{ChatID: msg.ChatID, Text: text}
	r.bus.Publish(eventbus.TopicOutboundMessage, out)
	if err := ch.Send(ctx, out); err != nil {
		r.logger.Error("send failed", zap.String("channel", msg.ChannelName), zap.Error(err))
	}
}
