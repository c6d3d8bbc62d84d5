package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"signalhub/internal/domain"
	"signalhub/internal/service"
	"signalhub/pkg/logger"
)

// SpotSignalInput carries operator input for a spot signal.
type SpotSignalInput struct {
	Symbol     string
	Side       string
	EntryMin   *decimal.Decimal
	EntryMax   *decimal.Decimal
	Support    *decimal.Decimal
	Resistance *decimal.Decimal
	Targets    []decimal.Decimal
	StopLoss   decimal.Decimal
	Notes      string
}

// FuturesSignalInput carries operator input for a futures signal. With
// AutoLevels set, Targets and StopLoss are computed from the settings.
type FuturesSignalInput struct {
	Symbol           string
	Side             string
	EntryPrice       decimal.Decimal
	Leverage         int
	PositionValue    decimal.Decimal
	Targets          []decimal.Decimal
	StopLoss         decimal.Decimal
	AutoLevels       bool
	TraderExternalID string
	TraderName       string
	TraderProfileURL string
	Notes            string
}

// SignalService manages spot and futures signals and their publication.
type SignalService struct {
	signals  domain.SignalRepository
	settings *SettingsService
	renderer *service.TemplateRenderer
	fanout   *service.FanoutService
	audit    *AuditService
	metrics  domain.Metrics
	logger   *logger.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewSignalService creates a new SignalService
func NewSignalService(
	signals domain.SignalRepository,
	settings *SettingsService,
	renderer *service.TemplateRenderer,
	fanout *service.FanoutService,
	audit *AuditService,
	metrics domain.Metrics,
	log *logger.Logger,
	loc *time.Location,
) *SignalService {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SignalService{
		signals:  signals,
		settings: settings,
		renderer: renderer,
		fanout:   fanout,
		audit:    audit,
		metrics:  metrics,
		logger:   log,
		loc:      loc,
		now:      time.Now,
	}
}

// CreateSpot validates and stores a manual spot signal.
func (s *SignalService) CreateSpot(ctx context.Context, actor domain.Actor, in SpotSignalInput) (*domain.Signal, error) {
	now := s.now()
	signal := &domain.Signal{
		ID:        uuid.New(),
		Kind:      domain.SignalKindSpot,
		Status:    domain.SignalStatusActive,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applySpotInput(signal, in)
	return s.create(ctx, actor, signal, "manual")
}

// CreateFutures validates and stores a manual futures signal. Manual signals
// do not pass through the follow policy and do not count toward the daily cap.
func (s *SignalService) CreateFutures(ctx context.Context, actor domain.Actor, in FuturesSignalInput) (*domain.Signal, error) {
	now := s.now()
	signal := &domain.Signal{
		ID:        uuid.New(),
		Kind:      domain.SignalKindFutures,
		Status:    domain.SignalStatusActive,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.applyFuturesInput(ctx, signal, in); err != nil {
		return nil, err
	}
	return s.create(ctx, actor, signal, "manual")
}

func (s *SignalService) create(ctx context.Context, actor domain.Actor, signal *domain.Signal, source string) (*domain.Signal, error) {
	if err := signal.Validate(); err != nil {
		return nil, err
	}

	created, err := s.signals.Create(ctx, signal)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s signal: %w", signal.Kind, err)
	}
	if !created {
		return nil, domain.NewError(domain.KindConflict, "signal already exists")
	}

	s.metrics.RecordSignalCreated(signal.Kind, source)
	s.audit.Record(ctx, actor, domain.AuditSignalCreated, signalTable(signal.Kind), signal.ID.String(), nil, signalAuditValues(signal))
	s.logger.Info("Signal created",
		logger.String("id", signal.ID.String()),
		logger.String("kind", string(signal.Kind)),
		logger.String("symbol", signal.Symbol),
		logger.String("side", signal.Side),
		logger.String("source", source),
	)
	return signal, nil
}

// Get retrieves a signal
func (s *SignalService) Get(ctx context.Context, kind domain.SignalKind, id uuid.UUID) (*domain.Signal, error) {
	return s.signals.GetByID(ctx, kind, id)
}

// List retrieves signals newest first
func (s *SignalService) List(ctx context.Context, kind domain.SignalKind, filter domain.SignalFilter) ([]*domain.Signal, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	filter.Symbol = strings.ToUpper(filter.Symbol)
	return s.signals.List(ctx, kind, filter)
}

// Stats counts signals of a kind by status
func (s *SignalService) Stats(ctx context.Context, kind domain.SignalKind) (*domain.SignalStats, error) {
	return s.signals.Stats(ctx, kind)
}

// UpdateSpot rewrites the levels of an active spot signal.
func (s *SignalService) UpdateSpot(ctx context.Context, actor domain.Actor, id uuid.UUID, in SpotSignalInput) (*domain.Signal, error) {
	return s.update(ctx, actor, domain.SignalKindSpot, id, func(signal *domain.Signal) error {
		applySpotInput(signal, in)
		return nil
	})
}

// UpdateFutures rewrites the levels of an active futures signal.
func (s *SignalService) UpdateFutures(ctx context.Context, actor domain.Actor, id uuid.UUID, in FuturesSignalInput) (*domain.Signal, error) {
	return s.update(ctx, actor, domain.SignalKindFutures, id, func(signal *domain.Signal) error {
		return s.applyFuturesInput(ctx, signal, in)
	})
}

func (s *SignalService) update(ctx context.Context, actor domain.Actor, kind domain.SignalKind, id uuid.UUID, apply func(*domain.Signal) error) (*domain.Signal, error) {
	signal, err := s.signals.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if signal.Status != domain.SignalStatusActive {
		return nil, domain.NewError(domain.KindInvalidTransition, "signal is %s; only active signals can be edited", signal.Status)
	}

	before := signalAuditValues(signal)
	if err := apply(signal); err != nil {
		return nil, err
	}
	if err := signal.Validate(); err != nil {
		return nil, err
	}
	signal.UpdatedAt = s.now()

	if err := s.signals.Update(ctx, signal); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, domain.AuditSignalUpdated, signalTable(kind), id.String(), before, signalAuditValues(signal))
	return signal, nil
}

// ChangeStatus moves an active signal to completed or cancelled. Terminal
// signals reject every further transition.
func (s *SignalService) ChangeStatus(ctx context.Context, actor domain.Actor, kind domain.SignalKind, id uuid.UUID, status string) (*domain.Signal, error) {
	return s.changeStatus(ctx, actor, kind, id, status, nil)
}

func (s *SignalService) changeStatus(ctx context.Context, actor domain.Actor, kind domain.SignalKind, id uuid.UUID, status string, extra map[string]interface{}) (*domain.Signal, error) {
	signal, err := s.signals.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	from := signal.Status
	if err := signal.TransitionTo(status); err != nil {
		return nil, err
	}
	if err := s.signals.UpdateStatus(ctx, kind, id, status); err != nil {
		return nil, err
	}
	signal.UpdatedAt = s.now()

	newValues := map[string]interface{}{"status": status}
	for k, v := range extra {
		newValues[k] = v
	}
	s.audit.Record(ctx, actor, domain.AuditSignalStatusChanged, signalTable(kind), id.String(),
		map[string]interface{}{"status": from}, newValues)
	s.logger.Info("Signal status changed",
		logger.String("id", id.String()),
		logger.String("from", from),
		logger.String("to", status),
	)
	return signal, nil
}

// Publish renders an active signal with its configured template and fans it
// out to the configured audience. A signal is published at most once.
func (s *SignalService) Publish(ctx context.Context, actor domain.Actor, kind domain.SignalKind, id uuid.UUID) (*domain.DeliveryReport, error) {
	signal, err := s.signals.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if signal.Status != domain.SignalStatusActive {
		return nil, domain.NewError(domain.KindInvalidTransition, "signal is %s; only active signals can be sent", signal.Status)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	templateID, audience := settings.SpotTemplate, settings.SpotAudience
	if kind == domain.SignalKindFutures {
		templateID, audience = settings.FuturesTemplate, settings.FuturesAudience
	}

	text, err := s.renderer.Render(ctx, templateID, service.SignalVariables(signal, settings, s.loc))
	if err != nil {
		return nil, err
	}

	claimed, err := s.signals.ClaimSend(ctx, kind, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to claim signal for sending: %w", err)
	}
	if !claimed {
		return nil, domain.NewError(domain.KindConflict, "signal has already been sent")
	}

	// detached from the caller: a claimed signal must finish its fan-out
	deliverCtx := context.WithoutCancel(ctx)
	report, err := s.fanout.Deliver(deliverCtx, audience, text)
	if err != nil {
		if rerr := s.signals.ReleaseSend(deliverCtx, kind, id); rerr != nil {
			s.logger.Error("Failed to release signal send claim",
				logger.String("id", id.String()),
				logger.Error(rerr),
			)
		}
		return nil, err
	}
	if err := s.signals.RecordDelivery(deliverCtx, kind, id, report.Delivered); err != nil {
		s.logger.Error("Failed to record signal delivery",
			logger.String("id", id.String()),
			logger.Error(err),
		)
	}

	s.audit.Record(deliverCtx, actor, domain.AuditSignalSent, signalTable(kind), id.String(), nil, map[string]interface{}{
		"audience":  audience,
		"targeted":  report.Targeted,
		"delivered": report.Delivered,
		"failed":    report.Failed,
	})
	return report, nil
}

// storePolicySignal stores a signal accepted by the follow policy. created is
// false when the source position was already recorded.
func (s *SignalService) storePolicySignal(ctx context.Context, signal *domain.Signal) (bool, error) {
	created, err := s.signals.Create(ctx, signal)
	if err != nil || !created {
		return created, err
	}
	s.metrics.RecordSignalCreated(signal.Kind, "leaderboard")
	s.audit.Record(ctx, domain.SystemActor, domain.AuditSignalCreated, signalTable(signal.Kind), signal.ID.String(), nil, signalAuditValues(signal))
	return true, nil
}

func applySpotInput(signal *domain.Signal, in SpotSignalInput) {
	signal.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	signal.Side = strings.ToLower(in.Side)
	signal.Targets = in.Targets
	signal.StopLoss = in.StopLoss
	signal.Notes = in.Notes
	signal.Spot = &domain.SpotDetails{
		EntryMin:   in.EntryMin,
		EntryMax:   in.EntryMax,
		Support:    in.Support,
		Resistance: in.Resistance,
	}
}

func (s *SignalService) applyFuturesInput(ctx context.Context, signal *domain.Signal, in FuturesSignalInput) error {
	signal.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	signal.Side = strings.ToLower(in.Side)
	signal.Notes = in.Notes
	signal.Targets = in.Targets
	signal.StopLoss = in.StopLoss
	signal.Futures = &domain.FuturesDetails{
		EntryPrice:       in.EntryPrice,
		Leverage:         in.Leverage,
		PositionValue:    in.PositionValue,
		TraderExternalID: in.TraderExternalID,
		TraderName:       in.TraderName,
		TraderProfileURL: in.TraderProfileURL,
	}

	if !in.AutoLevels {
		return nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	levels, err := service.CalculateLevels(in.EntryPrice, signal.Side, service.OffsetsFromSettings(settings))
	if err != nil {
		return err
	}
	signal.Targets = levels.Targets
	signal.StopLoss = levels.StopLoss
	if signal.Futures.PositionValue.IsZero() {
		signal.Futures.PositionValue = settings.DefaultPositionValue
	}
	return nil
}

func signalTable(kind domain.SignalKind) string {
	if kind == domain.SignalKindFutures {
		return "futures_signals"
	}
	return "spot_signals"
}

func signalAuditValues(s *domain.Signal) map[string]interface{} {
	targets := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = t.String()
	}
	values := map[string]interface{}{
		"symbol":    s.Symbol,
		"side":      s.Side,
		"status":    s.Status,
		"targets":   targets,
		"stop_loss": s.StopLoss.String(),
	}
	if entry, ok := s.Entry(); ok {
		values["entry"] = entry.String()
	}
	if s.Futures != nil {
		values["leverage"] = s.Futures.Leverage
		if s.Futures.SourceRef != "" {
			values["source_ref"] = s.Futures.SourceRef
		}
	}
	return values
}
