package usecase

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"signalhub/internal/domain"
	"signalhub/internal/service"
	"signalhub/pkg/logger"
)

const confirmTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// BroadcastInput carries operator input for a broadcast.
type BroadcastInput struct {
	Title    string
	Content  string
	Audience string
}

// PrepareResult is returned by Prepare. The token must be echoed to Confirm.
type PrepareResult struct {
	Broadcast *domain.Broadcast `json:"broadcast"`
	Token     string            `json:"confirmation_token"`
	Targeted  int               `json:"targeted_count"`
}

// AudienceCount is the live size of an audience.
type AudienceCount struct {
	Audience string `json:"audience"`
	Count    int    `json:"count"`
}

// BroadcastService manages broadcasts through draft, prepare and confirm.
type BroadcastService struct {
	repo   domain.BroadcastRepository
	fanout *service.FanoutService
	audit  *AuditService
	logger *logger.Logger
	now    func() time.Time
}

// NewBroadcastService creates a new BroadcastService
func NewBroadcastService(repo domain.BroadcastRepository, fanout *service.FanoutService, audit *AuditService, log *logger.Logger) *BroadcastService {
	return &BroadcastService{repo: repo, fanout: fanout, audit: audit, logger: log, now: time.Now}
}

// Create stores a draft broadcast.
func (s *BroadcastService) Create(ctx context.Context, actor domain.Actor, in BroadcastInput) (*domain.Broadcast, error) {
	if err := validateBroadcastInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	b := &domain.Broadcast{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Audience:  in.Audience,
		Status:    domain.BroadcastDraft,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create broadcast: %w", err)
	}
	s.audit.Record(ctx, actor, domain.AuditBroadcastCreated, "broadcasts", b.ID.String(), nil, broadcastAuditValues(b))
	return b, nil
}

// Get retrieves a broadcast
func (s *BroadcastService) Get(ctx context.Context, id uuid.UUID) (*domain.Broadcast, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves broadcasts newest first
func (s *BroadcastService) List(ctx context.Context, status string, limit, offset int) ([]*domain.Broadcast, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.List(ctx, status, limit, offset)
}

// Update rewrites an unsent broadcast. Any issued token is invalidated and the
// broadcast returns to draft.
func (s *BroadcastService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in BroadcastInput) (*domain.Broadcast, error) {
	if err := validateBroadcastInput(in); err != nil {
		return nil, err
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Editable() {
		return nil, domain.NewError(domain.KindConflict, "broadcast is %s and can no longer be edited", b.Status)
	}

	before := broadcastAuditValues(b)
	b.Title = strings.TrimSpace(in.Title)
	b.Content = in.Content
	b.Audience = in.Audience
	b.Status = domain.BroadcastDraft
	b.ConfirmToken = ""
	b.TargetedCount = 0
	b.PreparedAt = nil
	b.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, domain.AuditBroadcastUpdated, "broadcasts", id.String(), before, broadcastAuditValues(b))
	return b, nil
}

// Delete removes an unsent broadcast.
func (s *BroadcastService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !b.Editable() {
		return domain.NewError(domain.KindConflict, "broadcast is %s and can no longer be deleted", b.Status)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, domain.AuditBroadcastDeleted, "broadcasts", id.String(), broadcastAuditValues(b), nil)
	return nil
}

// Prepare issues a fresh confirmation token and snapshots the audience size.
// Preparing again replaces the previous token.
func (s *BroadcastService) Prepare(ctx context.Context, actor domain.Actor, id uuid.UUID) (*PrepareResult, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Editable() {
		return nil, domain.NewError(domain.KindConflict, "broadcast is %s and cannot be prepared", b.Status)
	}
	if _, err := s.render(b); err != nil {
		return nil, err
	}

	targeted, err := s.fanout.CountAudience(ctx, b.Audience)
	if err != nil {
		return nil, err
	}
	token, err := newConfirmToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate confirmation token: %w", err)
	}

	now := s.now()
	if err := s.repo.MarkPrepared(ctx, id, token, targeted, now); err != nil {
		return nil, err
	}
	b.Status = domain.BroadcastPrepared
	b.ConfirmToken = token
	b.TargetedCount = targeted
	b.PreparedAt = &now

	s.audit.Record(ctx, actor, domain.AuditBroadcastPrepared, "broadcasts", id.String(), nil,
		map[string]interface{}{"audience": b.Audience, "targeted": targeted})
	return &PrepareResult{Broadcast: b, Token: token, Targeted: targeted}, nil
}

// Confirm delivers a prepared broadcast when token matches the issued one.
// Repeating a successful confirm with the same token returns the stored
// result without delivering again.
func (s *BroadcastService) Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID, token string) (*domain.Broadcast, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	token = strings.ToUpper(strings.TrimSpace(token))
	matches := token != "" && b.ConfirmToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(b.ConfirmToken)) == 1

	switch {
	case matches && (b.Status == domain.BroadcastSent || b.Status == domain.BroadcastFailed):
		return b, nil
	case matches && b.Status == domain.BroadcastSending:
		return nil, domain.NewError(domain.KindConflict, "broadcast is being sent")
	case !matches || b.Status != domain.BroadcastPrepared:
		return nil, domain.NewError(domain.KindConfirmationRequired, "a valid confirmation token from prepare is required").
			WithField("confirmation_token")
	}

	text, err := s.render(b)
	if err != nil {
		return nil, err
	}

	claimed, err := s.repo.ClaimSend(ctx, id, token)
	if err != nil {
		return nil, fmt.Errorf("failed to claim broadcast: %w", err)
	}
	if !claimed {
		// lost a race with a concurrent confirm
		return s.Confirm(ctx, actor, id, token)
	}

	// detached from the request: a claimed broadcast must reach sent or failed
	deliverCtx := context.WithoutCancel(ctx)
	report, err := s.fanout.Deliver(deliverCtx, b.Audience, text)
	if err != nil {
		s.logger.Error("Broadcast fan-out failed", logger.String("id", id.String()), logger.Error(err))
		if rerr := s.repo.ReleaseSend(deliverCtx, id); rerr != nil {
			s.logger.Error("Failed to release broadcast claim", logger.String("id", id.String()), logger.Error(rerr))
		}
		return nil, err
	}

	status := domain.BroadcastSent
	if report.Targeted > 0 && report.Delivered == 0 {
		status = domain.BroadcastFailed
	}
	now := s.now()
	if err := s.repo.Complete(deliverCtx, id, status, report, now); err != nil {
		return nil, fmt.Errorf("failed to complete broadcast: %w", err)
	}

	b.Status = status
	b.TargetedCount = report.Targeted
	b.SentCount = report.Delivered
	b.FailedCount = report.Failed
	b.SentAt = &now

	s.audit.Record(deliverCtx, actor, domain.AuditBroadcastSent, "broadcasts", id.String(), nil, map[string]interface{}{
		"status":    status,
		"audience":  b.Audience,
		"targeted":  report.Targeted,
		"delivered": report.Delivered,
		"failed":    report.Failed,
	})
	s.logger.Info("Broadcast delivered",
		logger.String("id", id.String()),
		logger.String("status", status),
		logger.Int("delivered", report.Delivered),
		logger.Int("failed", report.Failed),
	)
	return b, nil
}

// Audiences lists every audience with its live active subscriber count.
func (s *BroadcastService) Audiences(ctx context.Context) ([]AudienceCount, error) {
	audiences := []string{domain.AudienceAll, domain.TierFree, domain.TierPro, domain.TierElite}
	out := make([]AudienceCount, 0, len(audiences))
	for _, a := range audiences {
		n, err := s.fanout.CountAudience(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, AudienceCount{Audience: a, Count: n})
	}
	return out, nil
}

// Stats counts broadcasts by status
func (s *BroadcastService) Stats(ctx context.Context) (*domain.BroadcastStats, error) {
	return s.repo.Stats(ctx)
}

func (s *BroadcastService) render(b *domain.Broadcast) (string, error) {
	vars := service.BroadcastVariables(b, s.now())
	body, err := service.RenderContent(b.Content, vars)
	if err != nil {
		return "", err
	}
	if b.Title == "" {
		return body, nil
	}
	return b.Title + "\n\n" + body, nil
}

func validateBroadcastInput(in BroadcastInput) error {
	if strings.TrimSpace(in.Content) == "" {
		return domain.NewError(domain.KindValidation, "content is required").WithField("content")
	}
	if !domain.ValidAudience(in.Audience) {
		return domain.NewError(domain.KindValidation, "unknown audience %q", in.Audience).WithField("audience")
	}

	allowed := make(map[string]bool)
	for _, v := range domain.TemplateVariables[domain.TemplateTypeBroadcast] {
		allowed[v] = true
	}
	var unknown []string
	for _, name := range service.Placeholders(in.Content) {
		if !allowed[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return domain.MissingTemplateVariable(unknown).WithField("content")
	}
	return nil
}

func newConfirmToken() (string, error) {
	max := big.NewInt(int64(len(confirmTokenAlphabet)))
	buf := make([]byte, domain.ConfirmTokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = confirmTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func broadcastAuditValues(b *domain.Broadcast) map[string]interface{} {
	return map[string]interface{}{
		"title":    b.Title,
		"audience": b.Audience,
		"status":   b.Status,
	}
}
