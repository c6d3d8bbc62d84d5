package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"signalhub/internal/domain"
)

// Channel implements domain.BotChannel over the Telegram Bot API.
type Channel struct {
	bot *tgbotapi.BotAPI
}

// NewChannel connects to the Bot API with token.
func NewChannel(token string) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	return &Channel{bot: bot}, nil
}

// NewChannelWithAPI wraps an existing client.
func NewChannelWithAPI(bot *tgbotapi.BotAPI) *Channel {
	return &Channel{bot: bot}
}

// API exposes the client for the command loop.
func (c *Channel) API() *tgbotapi.BotAPI {
	return c.bot
}

// Send delivers text to one chat. Plain text only: rendered templates carry
// user content that would break Markdown parsing.
func (c *Channel) Send(ctx context.Context, subscriberID int64, text string) domain.DeliveryResult {
	result := domain.DeliveryResult{SubscriberID: subscriberID}
	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	msg := tgbotapi.NewMessage(subscriberID, text)
	msg.DisableWebPagePreview = true
	if _, err := c.bot.Send(msg); err != nil {
		result.Error = err.Error()
		result.Permanent = IsPermanent(err)
		return result
	}

	result.Delivered = true
	return result
}

// IsPermanent reports errors that will repeat for the same chat: the user
// blocked the bot, deleted the account or the chat does not exist.
func IsPermanent(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == 403 {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return apiErr.Code == 400 && (strings.Contains(msg, "chat not found") || strings.Contains(msg, "user is deactivated"))
}

var _ domain.BotChannel = (*Channel)(nil)

// ErrNotConfigured is reported by Disabled for every send.
var ErrNotConfigured = errors.New("telegram bot token is not configured")

// Disabled is the channel used when no bot token is set. Every send fails
// without touching the network.
type Disabled struct{}

// Send reports a failed delivery
func (Disabled) Send(_ context.Context, subscriberID int64, _ string) domain.DeliveryResult {
	return domain.DeliveryResult{SubscriberID: subscriberID, Error: ErrNotConfigured.Error()}
}
