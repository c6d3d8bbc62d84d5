package service

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

// FanoutService delivers a rendered message to every active subscriber of an
// audience through the bot channel. Each subscriber gets one attempt; failures
// are tallied, never retried.
type FanoutService struct {
	subscribers domain.SubscriberRepository
	channel     domain.BotChannel
	limiter     *rate.Limiter
	metrics     domain.Metrics
	logger      *logger.Logger
}

// NewFanoutService creates a FanoutService sending at most perSecond messages
// per second. perSecond <= 0 disables pacing.
func NewFanoutService(
	subscribers domain.SubscriberRepository,
	channel domain.BotChannel,
	perSecond float64,
	metrics domain.Metrics,
	log *logger.Logger,
) *FanoutService {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &FanoutService{
		subscribers: subscribers,
		channel:     channel,
		limiter:     limiter,
		metrics:     metrics,
		logger:      log,
	}
}

// Deliver sends text to the audience. The returned report counts successes
// and failures; if ctx ends mid-way the remaining subscribers are recorded as
// failed deliveries.
func (f *FanoutService) Deliver(ctx context.Context, audience, text string) (*domain.DeliveryReport, error) {
	if !domain.ValidAudience(audience) {
		return nil, domain.NewError(domain.KindValidation, "unknown audience %q", audience).WithField("audience")
	}

	ids, err := f.subscribers.ListActiveIDs(ctx, audience)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience %s: %w", audience, err)
	}

	report := &domain.DeliveryReport{Audience: audience, Targeted: len(ids)}
	for i, id := range ids {
		if err := f.limiter.Wait(ctx); err != nil {
			for _, rest := range ids[i:] {
				f.fail(report, domain.DeliveryResult{SubscriberID: rest, Error: err.Error()})
			}
			f.logger.Warn("Fan-out interrupted",
				logger.String("audience", audience),
				logger.Int("remaining", len(ids)-i),
				logger.Error(err),
			)
			break
		}

		result := f.channel.Send(ctx, id, text)
		result.SubscriberID = id
		if result.Delivered {
			report.Delivered++
			f.metrics.RecordDelivery(audience, true)
			continue
		}

		f.fail(report, result)
		if result.Permanent {
			if err := f.subscribers.SetActive(ctx, id, false); err != nil {
				f.logger.Warn("Failed to deactivate unreachable subscriber",
					logger.Int64("subscriber_id", id),
					logger.Error(err),
				)
			}
		}
	}

	f.logger.Info("Fan-out completed",
		logger.String("audience", audience),
		logger.Int("targeted", report.Targeted),
		logger.Int("delivered", report.Delivered),
		logger.Int("failed", report.Failed),
	)
	return report, nil
}

// CountAudience returns how many active subscribers an audience resolves to.
func (f *FanoutService) CountAudience(ctx context.Context, audience string) (int, error) {
	if !domain.ValidAudience(audience) {
		return 0, domain.NewError(domain.KindValidation, "unknown audience %q", audience).WithField("audience")
	}
	return f.subscribers.CountActive(ctx, audience)
}

func (f *FanoutService) fail(report *domain.DeliveryReport, result domain.DeliveryResult) {
	report.Failed++
	report.Failures = append(report.Failures, result)
	f.metrics.RecordDelivery(report.Audience, false)
	f.logger.Debug("Delivery failed",
		logger.Int64("subscriber_id", result.SubscriberID),
		logger.String("kind", string(domain.KindDeliveryFailure)),
		logger.String("error", result.Error),
	)
}
