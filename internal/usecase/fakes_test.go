package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"signalhub/internal/domain"
	"signalhub/internal/service"
	"signalhub/pkg/logger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decs(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = dec(s)
	}
	return out
}

type memorySignals struct {
	mu      sync.Mutex
	signals map[uuid.UUID]*domain.Signal
}

func newMemorySignals() *memorySignals {
	return &memorySignals{signals: map[uuid.UUID]*domain.Signal{}}
}

func copySignal(s *domain.Signal) *domain.Signal {
	c := *s
	return &c
}

func (m *memorySignals) Create(_ context.Context, s *domain.Signal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Futures != nil && s.Futures.SourceRef != "" {
		for _, existing := range m.signals {
			if existing.Futures != nil && existing.Futures.SourceRef == s.Futures.SourceRef {
				return false, nil
			}
		}
	}
	m.signals[s.ID] = copySignal(s)
	return true, nil
}

func (m *memorySignals) GetByID(_ context.Context, kind domain.SignalKind, id uuid.UUID) (*domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok || s.Kind != kind {
		return nil, domain.NotFound("signal", id)
	}
	return copySignal(s), nil
}

func (m *memorySignals) List(_ context.Context, kind domain.SignalKind, f domain.SignalFilter) ([]*domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Signal
	for _, s := range m.signals {
		if s.Kind != kind || (f.Status != "" && s.Status != f.Status) || (f.Symbol != "" && s.Symbol != f.Symbol) {
			continue
		}
		if f.TraderExternalID != "" && (s.Futures == nil || s.Futures.TraderExternalID != f.TraderExternalID) {
			continue
		}
		out = append(out, copySignal(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *memorySignals) Update(_ context.Context, s *domain.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.signals[s.ID]
	if !ok {
		return domain.NotFound("signal", s.ID)
	}
	if stored.Status != domain.SignalStatusActive {
		return domain.NewError(domain.KindInvalidTransition, "not active")
	}
	m.signals[s.ID] = copySignal(s)
	return nil
}

func (m *memorySignals) UpdateStatus(_ context.Context, _ domain.SignalKind, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok {
		return domain.NotFound("signal", id)
	}
	if s.Status != domain.SignalStatusActive {
		return domain.NewError(domain.KindInvalidTransition, "not active")
	}
	s.Status = status
	return nil
}

func (m *memorySignals) ClaimSend(_ context.Context, _ domain.SignalKind, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[id]
	if !ok {
		return false, domain.NotFound("signal", id)
	}
	if s.Status != domain.SignalStatusActive {
		return false, domain.NewError(domain.KindInvalidTransition, "not active")
	}
	if s.SentAt != nil {
		return false, nil
	}
	s.SentAt = &at
	return true, nil
}

func (m *memorySignals) ReleaseSend(_ context.Context, _ domain.SignalKind, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.signals[id]; ok {
		s.SentAt = nil
	}
	return nil
}

func (m *memorySignals) RecordDelivery(_ context.Context, _ domain.SignalKind, id uuid.UUID, delivered int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[id].DeliveredCount = delivered
	return nil
}

func (m *memorySignals) ExistsBySourceRef(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.signals {
		if s.Futures != nil && s.Futures.SourceRef == ref {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySignals) ReleaseClosedPositions(_ context.Context, trader string, openRefs []string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	open := map[string]bool{}
	for _, ref := range openRefs {
		open[ref] = true
	}
	n := 0
	for _, s := range m.signals {
		f := s.Futures
		if f == nil || f.TraderExternalID != trader || f.SourceRef == "" || strings.Contains(f.SourceRef, "|closed:") || open[f.SourceRef] {
			continue
		}
		released := *f
		released.SourceRef += "|closed:" + at.UTC().Format(time.RFC3339)
		s.Futures = &released
		n++
	}
	return n, nil
}

func (m *memorySignals) Stats(_ context.Context, kind domain.SignalKind) (*domain.SignalStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &domain.SignalStats{}
	for _, s := range m.signals {
		if s.Kind != kind {
			continue
		}
		st.Total++
		switch s.Status {
		case domain.SignalStatusActive:
			st.Active++
		case domain.SignalStatusCompleted:
			st.Completed++
		case domain.SignalStatusCancelled:
			st.Cancelled++
		}
		if s.SentAt != nil {
			st.Sent++
		}
	}
	return st, nil
}

func (m *memorySignals) count(kind domain.SignalKind) int {
	st, _ := m.Stats(context.Background(), kind)
	return st.Total
}

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMemoryCounter() *memoryCounter { return &memoryCounter{counts: map[string]int{}} }

func (m *memoryCounter) TryIncrement(_ context.Context, day string, cap int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[day] >= cap {
		return false, nil
	}
	m.counts[day]++
	return true, nil
}

func (m *memoryCounter) Release(_ context.Context, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[day] > 0 {
		m.counts[day]--
	}
	return nil
}

func (m *memoryCounter) Count(_ context.Context, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[day], nil
}

type memorySettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySettings(values map[string]string) *memorySettings {
	if values == nil {
		values = map[string]string{}
	}
	return &memorySettings{values: values}
}

func (m *memorySettings) GetAll(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memorySettings) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memorySettings) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *memorySettings) Set(ctx context.Context, key, value string) error {
	return m.SetMany(ctx, map[string]string{key: value})
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func (m *memoryAudit) Insert(_ context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryAudit) List(_ context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range m.entries {
		if f.Action == "" || e.Action == f.Action {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryAudit) actions(action string) []*domain.AuditEntry {
	out, _ := m.List(context.Background(), domain.AuditFilter{Action: action})
	return out
}

type memoryTemplates struct {
	mu           sync.Mutex
	byIdentifier map[string]*domain.Template
}

func newMemoryTemplates(ts ...*domain.Template) *memoryTemplates {
	m := &memoryTemplates{byIdentifier: map[string]*domain.Template{}}
	for _, t := range ts {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		m.byIdentifier[t.Identifier] = t
	}
	return m
}

func (m *memoryTemplates) Create(_ context.Context, t *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byIdentifier[t.Identifier]; ok {
		return domain.NewError(domain.KindConflict, "identifier taken")
	}
	m.byIdentifier[t.Identifier] = t
	return nil
}

func (m *memoryTemplates) GetByID(_ context.Context, id uuid.UUID) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byIdentifier {
		if t.ID == id {
			c := *t
			return &c, nil
		}
	}
	return nil, domain.NotFound("template", id)
}

func (m *memoryTemplates) GetByIdentifier(_ context.Context, identifier string) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byIdentifier[identifier]
	if !ok {
		return nil, domain.NotFound("template", identifier)
	}
	c := *t
	return &c, nil
}

func (m *memoryTemplates) List(_ context.Context, templateType string) ([]*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Template
	for _, t := range m.byIdentifier {
		if templateType == "" || t.Type == templateType {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryTemplates) Update(_ context.Context, t *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, existing := range m.byIdentifier {
		if existing.ID == t.ID {
			delete(m.byIdentifier, k)
		}
	}
	m.byIdentifier[t.Identifier] = t
	return nil
}

func (m *memoryTemplates) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.byIdentifier {
		if t.ID == id {
			delete(m.byIdentifier, k)
			return nil
		}
	}
	return domain.NotFound("template", id)
}

type memorySubscribers struct {
	mu      sync.Mutex
	subs    map[int64]*domain.Subscriber
	listErr error
}

func newMemorySubscribers(subs ...*domain.Subscriber) *memorySubscribers {
	m := &memorySubscribers{subs: map[int64]*domain.Subscriber{}}
	for _, s := range subs {
		m.subs[s.UserID] = s
	}
	return m
}

func (m *memorySubscribers) matching(audience string) []int64 {
	var ids []int64
	for id, s := range m.subs {
		if s.IsActive && (audience == domain.AudienceAll || s.Tier == audience) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *memorySubscribers) Upsert(_ context.Context, s *domain.Subscriber) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.subs[s.UserID]; ok {
		s.Tier = existing.Tier
		s.JoinedAt = existing.JoinedAt
	}
	m.subs[s.UserID] = s
	return s, nil
}

func (m *memorySubscribers) GetByUserID(_ context.Context, id int64) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.NotFound("subscriber", id)
	}
	c := *s
	return &c, nil
}

func (m *memorySubscribers) List(context.Context, domain.SubscriberFilter) ([]*domain.Subscriber, error) {
	return nil, nil
}

func (m *memorySubscribers) ListActiveIDs(_ context.Context, audience string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.matching(audience), nil
}

func (m *memorySubscribers) CountActive(_ context.Context, audience string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(audience)), nil
}

func (m *memorySubscribers) Update(_ context.Context, id int64, tier string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return domain.NotFound("subscriber", id)
	}
	s.Tier, s.IsActive = tier, active
	return nil
}

func (m *memorySubscribers) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		s.IsActive = active
	}
	return nil
}

func (m *memorySubscribers) Stats(context.Context) (*domain.SubscriberStats, error) {
	return &domain.SubscriberStats{}, nil
}

type memoryBroadcasts struct {
	mu sync.Mutex
	bs map[uuid.UUID]*domain.Broadcast
}

func newMemoryBroadcasts() *memoryBroadcasts {
	return &memoryBroadcasts{bs: map[uuid.UUID]*domain.Broadcast{}}
}

func (m *memoryBroadcasts) Create(_ context.Context, b *domain.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *b
	m.bs[b.ID] = &c
	return nil
}

func (m *memoryBroadcasts) GetByID(_ context.Context, id uuid.UUID) (*domain.Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bs[id]
	if !ok {
		return nil, domain.NotFound("broadcast", id)
	}
	c := *b
	return &c, nil
}

func (m *memoryBroadcasts) List(context.Context, string, int, int) ([]*domain.Broadcast, error) {
	return nil, nil
}

func (m *memoryBroadcasts) Update(_ context.Context, b *domain.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *b
	m.bs[b.ID] = &c
	return nil
}

func (m *memoryBroadcasts) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bs, id)
	return nil
}

func (m *memoryBroadcasts) MarkPrepared(_ context.Context, id uuid.UUID, token string, targeted int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bs[id]
	b.Status, b.ConfirmToken, b.TargetedCount, b.PreparedAt = domain.BroadcastPrepared, token, targeted, &at
	return nil
}

func (m *memoryBroadcasts) ClaimSend(_ context.Context, id uuid.UUID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bs[id]
	if b.Status != domain.BroadcastPrepared || b.ConfirmToken != token {
		return false, nil
	}
	b.Status = domain.BroadcastSending
	return true, nil
}

func (m *memoryBroadcasts) ReleaseSend(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.bs[id]; b.Status == domain.BroadcastSending {
		b.Status = domain.BroadcastPrepared
	}
	return nil
}

func (m *memoryBroadcasts) Complete(_ context.Context, id uuid.UUID, status string, r *domain.DeliveryReport, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bs[id]
	b.Status, b.SentCount, b.FailedCount, b.TargetedCount, b.SentAt = status, r.Delivered, r.Failed, r.Targeted, &at
	return nil
}

func (m *memoryBroadcasts) Stats(context.Context) (*domain.BroadcastStats, error) {
	return &domain.BroadcastStats{}, nil
}

type memoryTraders struct {
	mu      sync.Mutex
	traders map[string]*domain.Trader
}

func newMemoryTraders() *memoryTraders {
	return &memoryTraders{traders: map[string]*domain.Trader{}}
}

func (m *memoryTraders) UpsertSnapshots(_ context.Context, snaps []domain.TraderSnapshot, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		t, ok := m.traders[s.ExternalID]
		if !ok {
			t = &domain.Trader{ID: uuid.New(), ExternalID: s.ExternalID, CreatedAt: at}
			m.traders[s.ExternalID] = t
		}
		t.DisplayName, t.ProfileURL, t.ROI, t.PnL, t.WinRate, t.LastRefreshed = s.DisplayName, s.ProfileURL, s.ROI, s.PnL, s.WinRate, at
	}
	return nil
}

func (m *memoryTraders) GetByID(_ context.Context, id uuid.UUID) (*domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.traders {
		if t.ID == id {
			c := *t
			return &c, nil
		}
	}
	return nil, domain.NotFound("trader", id)
}

func (m *memoryTraders) GetByExternalID(_ context.Context, ext string) (*domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traders[ext]
	if !ok {
		return nil, domain.NotFound("trader", ext)
	}
	c := *t
	return &c, nil
}

func (m *memoryTraders) List(_ context.Context, f domain.TraderFilter) ([]*domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Trader
	for _, t := range m.traders {
		if f.FollowedOnly && !t.IsFollowed {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (m *memoryTraders) SetFollowed(_ context.Context, id uuid.UUID, followed, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.traders {
		if t.ID == id {
			t.IsFollowed, t.FollowLocked = followed, locked
			return nil
		}
	}
	return domain.NotFound("trader", id)
}

func (m *memoryTraders) ApplyPolicyFollows(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	changed := 0
	for ext, t := range m.traders {
		if t.FollowLocked || t.IsFollowed == want[ext] {
			continue
		}
		t.IsFollowed = want[ext]
		changed++
	}
	return changed, nil
}

func (m *memoryTraders) ReleaseLock(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.traders {
		if t.ID == id {
			t.FollowLocked = false
			return nil
		}
	}
	return domain.NotFound("trader", id)
}

func (m *memoryTraders) byExternal(ext string) *domain.Trader {
	t, _ := m.GetByExternalID(context.Background(), ext)
	return t
}

type fakeGateway struct {
	mu          sync.Mutex
	leaderboard []domain.TraderSnapshot
	positions   map[string][]domain.TraderPosition
	prices      map[string]decimal.Decimal
	calls       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{positions: map[string][]domain.TraderPosition{}, prices: map[string]decimal.Decimal{}}
}

func (g *fakeGateway) FetchLeaderboard(context.Context, domain.RankCriterion) ([]domain.TraderSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.leaderboard, nil
}

func (g *fakeGateway) FetchTraderPositions(_ context.Context, ext string) ([]domain.TraderPosition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.positions[ext], nil
}

func (g *fakeGateway) FetchPrice(_ context.Context, symbol string) (domain.Price, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.prices[symbol]
	if !ok {
		return domain.Price{}, domain.ExternalProviderError("binance", fmt.Errorf("no price for %s", symbol))
	}
	return domain.Price{Symbol: symbol, Price: p}, nil
}

func (g *fakeGateway) FetchSentiment(context.Context) (domain.Sentiment, error) {
	return domain.Sentiment{Value: 55, Classification: "Greed"}, nil
}

type scriptedChannel struct {
	mu   sync.Mutex
	fail map[int64]bool
	sent map[int64][]string
}

func newScriptedChannel() *scriptedChannel {
	return &scriptedChannel{fail: map[int64]bool{}, sent: map[int64][]string{}}
}

func (c *scriptedChannel) Send(_ context.Context, id int64, text string) domain.DeliveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[id] {
		return domain.DeliveryResult{SubscriberID: id, Error: "blocked"}
	}
	c.sent[id] = append(c.sent[id], text)
	return domain.DeliveryResult{SubscriberID: id, Delivered: true}
}

func (c *scriptedChannel) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, msgs := range c.sent {
		n += len(msgs)
	}
	return n
}

// harness wires the usecases over in-memory stores.
type harness struct {
	signals     *memorySignals
	counter     *memoryCounter
	settingsDB  *memorySettings
	audit       *memoryAudit
	templates   *memoryTemplates
	subscribers *memorySubscribers
	broadcasts  *memoryBroadcasts
	traders     *memoryTraders
	gateway     *fakeGateway
	channel     *scriptedChannel

	settingsSvc   *SettingsService
	signalSvc     *SignalService
	broadcastSvc  *BroadcastService
	leaderboard   *LeaderboardService
	templateSvc   *TemplateService
	subscriberSvc *SubscriberService
	monitor       *PriceMonitor
	now           time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()

	h := &harness{
		signals:    newMemorySignals(),
		counter:    newMemoryCounter(),
		settingsDB: newMemorySettings(nil),
		audit:      &memoryAudit{},
		templates: newMemoryTemplates(
			&domain.Template{Identifier: domain.DefaultSpotTemplate, Name: "Spot", Type: domain.TemplateTypeSpot, IsActive: true,
				Content: "{side} {symbol} entry {entry} TP1 {target_1} SL {stop_loss}"},
			&domain.Template{Identifier: domain.DefaultFuturesTemplate, Name: "Futures", Type: domain.TemplateTypeFutures, IsActive: true,
				Content: "{side} {symbol} {leverage} entry {entry} TP1 {target_1} TP2 {target_2} SL {stop_loss} by {trader_name}"},
		),
		subscribers: newMemorySubscribers(
			&domain.Subscriber{UserID: 1, Tier: domain.TierFree, IsActive: true},
			&domain.Subscriber{UserID: 2, Tier: domain.TierPro, IsActive: true},
			&domain.Subscriber{UserID: 3, Tier: domain.TierElite, IsActive: true},
		),
		broadcasts: newMemoryBroadcasts(),
		traders:    newMemoryTraders(),
		gateway:    newFakeGateway(),
		channel:    newScriptedChannel(),
		now:        time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }

	audit := NewAuditService(h.audit, log)
	audit.now = clock
	h.settingsSvc = NewSettingsService(h.settingsDB, audit, log)

	fanout := service.NewFanoutService(h.subscribers, h.channel, 0, nil, log)
	renderer := service.NewTemplateRenderer(h.templates)

	h.signalSvc = NewSignalService(h.signals, h.settingsSvc, renderer, fanout, audit, nil, log, time.UTC)
	h.signalSvc.now = clock

	h.broadcastSvc = NewBroadcastService(h.broadcasts, fanout, audit, log)
	h.broadcastSvc.now = clock

	policy := service.NewFollowPolicy(h.counter, nil, log)
	h.leaderboard = NewLeaderboardService(h.gateway, h.traders, h.signals, h.counter, policy, h.settingsSvc, h.signalSvc, audit, log, time.UTC)
	h.leaderboard.now = clock

	h.templateSvc = NewTemplateService(h.templates, h.settingsSvc, audit, log)
	h.templateSvc.now = clock
	h.subscriberSvc = NewSubscriberService(h.subscribers, audit, log)
	h.monitor = NewPriceMonitor(h.signalSvc, h.gateway, log)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func operator() domain.Actor {
	id := uuid.New()
	return domain.Actor{UserID: &id, IPAddress: "127.0.0.1"}
}
