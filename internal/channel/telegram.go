package channel

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// TelegramChannel integrates with the Telegram Bot API. Each Telegram chat
// is mapped to an application user id up front; messages from unmapped
// chats are dropped, so the channel acts as the authenticator for inbound
// traffic.
type TelegramChannel struct {
	mu        sync.Mutex
	token     string
	chatUsers map[int64]int64 // telegram chat id -> application user id
	bot       *tele.Bot
	handler   func(InboundMessage)
	running   bool
	logger    *zap.Logger
}

// NewTelegramChannel creates a new Telegram channel.
func NewTelegramChannel(token string, chatUsers map[int64]int64, logger *zap.Logger) *TelegramChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramChannel{
		token:     token,
		chatUsers: chatUsers,
		logger:    logger,
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	pref := tele.Settings{
		Token:  t.token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	bot.Handle(tele.OnText, func(c tele.Context) error {
		chatID := c.Chat().ID
		userID, ok := t.chatUsers[chatID]
		if !ok {
			t.logger.Warn("message from unmapped chat",
				zap.Int64("chat_id", chatID),
				zap.String("sender", c.Sender().Username))
			return nil
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()

		if handler != nil {
			handler(InboundMessage{
				ChannelName: "telegram",
				UserID:      userID,
				ChatID:      strconv.FormatInt(chatID, 10),
				Text:        c.Text(),
				Timestamp:   time.Now(),
			})
		}
		return nil
	})

	t.bot = bot
	t.running = true

	go func() {
		bot.Start()
	}()

	go func() {
		<-ctx.Done()
		bot.Stop()
	}()

	return nil
}

func (t *TelegramChannel) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		t.bot.Stop()
	}
	t.running = false
	return nil
}

func (t *TelegramChannel) Send(_ context.Context, msg OutboundMessage) error {
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()

	if bot == nil {
		return fmt.Errorf("telegram bot not started")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	recipient := &tele.Chat{ID: chatID}

	// Split long messages (Telegram limit is 4096)
	for _, chunk := range splitMessage(msg.Text, 4000) {
		if _, err := bot.Send(recipient, chunk); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}

	return nil
}

// splitMessage cuts text into chunks of at most max bytes without splitting
// a UTF-8 rune across chunks.
func splitMessage(text string, max int) []string {
	var chunks []string
	for len(text) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = max
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

func (t *TelegramChannel) OnMessage(handler func(InboundMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *TelegramChannel) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
