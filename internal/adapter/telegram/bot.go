package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"signalhub/internal/cache"
	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

const signalListLimit = 10

// SubscriberDirectory registers and looks up bot users.
type SubscriberDirectory interface {
	Register(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error)
	Deactivate(ctx context.Context, userID int64) error
	Get(ctx context.Context, userID int64) (*domain.Subscriber, error)
}

// SignalLister reads published signals.
type SignalLister interface {
	List(ctx context.Context, kind domain.SignalKind, filter domain.SignalFilter) ([]*domain.Signal, error)
}

// MarketReader reads market data.
type MarketReader interface {
	Price(ctx context.Context, symbol string) (domain.Price, error)
	Sentiment(ctx context.Context) (domain.Sentiment, error)
}

// User is the sender of a command.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Bot answers subscriber commands.
type Bot struct {
	subscribers SubscriberDirectory
	signals     SignalLister
	market      MarketReader
	throttle    cache.Store
	perMinute   int
	logger      *logger.Logger
}

// NewBot creates a command handler. perMinute limits commands per user.
func NewBot(subscribers SubscriberDirectory, signals SignalLister, market MarketReader, throttle cache.Store, perMinute int, log *logger.Logger) *Bot {
	return &Bot{
		subscribers: subscribers,
		signals:     signals,
		market:      market,
		throttle:    throttle,
		perMinute:   perMinute,
		logger:      log,
	}
}

// Run long-polls updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI, pollTimeout int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	b.logger.Info("Telegram bot started", logger.String("username", api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.dispatch(ctx, api, update.Message)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, api *tgbotapi.BotAPI, m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	user := User{
		ID:        m.From.ID,
		Username:  m.From.UserName,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
	}

	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	reply := b.Handle(reqCtx, user, m.Command(), m.CommandArguments())
	if reply == "" {
		return
	}
	if _, err := api.Send(tgbotapi.NewMessage(m.Chat.ID, reply)); err != nil {
		b.logger.Warn("Failed to reply to command",
			logger.Int64("user_id", user.ID),
			logger.String("command", m.Command()),
			logger.Error(err),
		)
	}
}

// Handle runs one command and returns the reply text.
func (b *Bot) Handle(ctx context.Context, user User, command, args string) string {
	allowed, err := b.throttle.Allow(ctx, fmt.Sprintf("bot:%d", user.ID), b.perMinute, time.Minute)
	if err != nil {
		b.logger.Warn("Throttle check failed", logger.Int64("user_id", user.ID), logger.Error(err))
	} else if !allowed {
		return "⏳ Too many requests. Please wait a minute."
	}

	switch command {
	case "start":
		return b.start(ctx, user)
	case "stop":
		return b.stop(ctx, user)
	case "signals":
		return b.listSignals(ctx, user)
	case "account":
		return b.account(ctx, user)
	case "market":
		return b.marketInfo(ctx, args)
	case "help":
		return helpText
	default:
		return "Unknown command. " + helpText
	}
}

const helpText = "Commands: /signals, /account, /market SYMBOL, /stop"

func (b *Bot) start(ctx context.Context, user User) string {
	sub, err := b.subscribers.Register(ctx, &domain.Subscriber{
		UserID:    user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
	if err != nil {
		b.logger.Error("Failed to register subscriber", logger.Int64("user_id", user.ID), logger.Error(err))
		return "⚠️ Registration failed, please try again later."
	}

	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	return fmt.Sprintf("👋 Welcome, %s!\nYou are subscribed on the %s tier.\n%s", name, strings.ToUpper(sub.Tier), helpText)
}

func (b *Bot) stop(ctx context.Context, user User) string {
	if err := b.subscribers.Deactivate(ctx, user.ID); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return "You are not subscribed. Send /start to join."
		}
		b.logger.Error("Failed to deactivate subscriber", logger.Int64("user_id", user.ID), logger.Error(err))
		return "⚠️ Could not unsubscribe, please try again later."
	}
	return "🔕 You will no longer receive signals. Send /start to resubscribe."
}

func (b *Bot) subscriber(ctx context.Context, user User) (*domain.Subscriber, string) {
	sub, err := b.subscribers.Get(ctx, user.ID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, "You are not subscribed. Send /start to join."
		}
		b.logger.Error("Failed to load subscriber", logger.Int64("user_id", user.ID), logger.Error(err))
		return nil, "⚠️ Something went wrong, please try again later."
	}
	if !sub.IsActive {
		return nil, "Your subscription is paused. Send /start to resume."
	}
	return sub, ""
}

// listSignals shows active signals the tier can see: spot for everyone,
// futures for pro and elite.
func (b *Bot) listSignals(ctx context.Context, user User) string {
	sub, reply := b.subscriber(ctx, user)
	if sub == nil {
		return reply
	}

	kinds := []domain.SignalKind{domain.SignalKindSpot}
	if sub.CanSeeFutures() {
		kinds = append(kinds, domain.SignalKindFutures)
	}

	var lines []string
	for _, kind := range kinds {
		signals, err := b.signals.List(ctx, kind, domain.SignalFilter{Status: domain.SignalStatusActive, Limit: signalListLimit})
		if err != nil {
			b.logger.Error("Failed to list signals", logger.String("kind", string(kind)), logger.Error(err))
			return "⚠️ Could not load signals, please try again later."
		}
		for _, s := range signals {
			lines = append(lines, summarize(s))
		}
	}

	if len(lines) == 0 {
		return "No active signals right now."
	}
	if !sub.CanSeeFutures() {
		lines = append(lines, "", "Upgrade to PRO for futures signals.")
	}
	return "📊 Active signals\n\n" + strings.Join(lines, "\n")
}

func summarize(s *domain.Signal) string {
	icon := "🟢"
	if s.Side == domain.SideShort {
		icon = "🔴"
	}
	line := fmt.Sprintf("%s %s %s %s", icon, strings.ToUpper(string(s.Kind)), s.Symbol, strings.ToUpper(s.Side))
	if s.Futures != nil {
		line += fmt.Sprintf(" x%d", s.Futures.Leverage)
	}
	if entry, ok := s.Entry(); ok {
		line += " | Entry " + entry.String()
	}
	if len(s.Targets) > 0 {
		line += " | TP1 " + s.Targets[0].String()
	}
	return line + " | SL " + s.StopLoss.String()
}

func (b *Bot) account(ctx context.Context, user User) string {
	sub, reply := b.subscriber(ctx, user)
	if sub == nil {
		return reply
	}

	access := "spot signals"
	if sub.CanSeeFutures() {
		access = "spot and futures signals"
	}
	return fmt.Sprintf("👤 Account\nTier: %s\nAccess: %s\nMember since: %s",
		strings.ToUpper(sub.Tier), access, sub.JoinedAt.Format("2006-01-02"))
}

func (b *Bot) marketInfo(ctx context.Context, args string) string {
	symbol := strings.ToUpper(strings.TrimSpace(args))
	if symbol == "" {
		return "Usage: /market SYMBOL (for example /market BTCUSDT)"
	}

	price, err := b.market.Price(ctx, symbol)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound || domain.KindOf(err) == domain.KindValidation {
			return fmt.Sprintf("Unknown symbol %s.", symbol)
		}
		b.logger.Warn("Price lookup failed", logger.String("symbol", symbol), logger.Error(err))
		return "⚠️ Market data is unavailable right now."
	}

	reply := fmt.Sprintf("💹 %s: %s", price.Symbol, price.Price.String())
	if s, err := b.market.Sentiment(ctx); err == nil {
		reply += fmt.Sprintf("\nFear & Greed: %d (%s)", s.Value, s.Classification)
	}
	return reply
}
