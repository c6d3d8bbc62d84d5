package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"signalhub/internal/domain"
)

// memoryCounter mimics the conditional upsert of the daily counter table.
// Several FollowPolicy instances can share one to model restarts.
type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{counts: make(map[string]int)}
}

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

type memorySubscribers struct {
	mu   sync.Mutex
	subs map[int64]*domain.Subscriber
}

func newMemorySubscribers(subs ...*domain.Subscriber) *memorySubscribers {
	m := &memorySubscribers{subs: make(map[int64]*domain.Subscriber)}
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
	return s, nil
}

func (m *memorySubscribers) List(context.Context, domain.SubscriberFilter) ([]*domain.Subscriber, error) {
	return nil, nil
}

func (m *memorySubscribers) ListActiveIDs(_ context.Context, audience string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

// scriptedChannel delivers to everyone except the ids in fail.
type scriptedChannel struct {
	mu        sync.Mutex
	fail      map[int64]bool
	permanent map[int64]bool
	sent      map[int64][]string
}

func newScriptedChannel() *scriptedChannel {
	return &scriptedChannel{fail: map[int64]bool{}, permanent: map[int64]bool{}, sent: map[int64][]string{}}
}

func (c *scriptedChannel) Send(_ context.Context, id int64, text string) domain.DeliveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[id] || c.permanent[id] {
		return domain.DeliveryResult{SubscriberID: id, Permanent: c.permanent[id], Error: fmt.Sprintf("send to %d failed", id)}
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

type memoryTemplates struct {
	byIdentifier map[string]*domain.Template
}

func newMemoryTemplates(ts ...*domain.Template) *memoryTemplates {
	m := &memoryTemplates{byIdentifier: map[string]*domain.Template{}}
	for _, t := range ts {
		m.byIdentifier[t.Identifier] = t
	}
	return m
}

func (m *memoryTemplates) Create(_ context.Context, t *domain.Template) error {
	m.byIdentifier[t.Identifier] = t
	return nil
}

func (m *memoryTemplates) GetByID(_ context.Context, id uuid.UUID) (*domain.Template, error) {
	for _, t := range m.byIdentifier {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.NotFound("template", id)
}

func (m *memoryTemplates) GetByIdentifier(_ context.Context, identifier string) (*domain.Template, error) {
	t, ok := m.byIdentifier[identifier]
	if !ok {
		return nil, domain.NotFound("template", identifier)
	}
	return t, nil
}

func (m *memoryTemplates) List(context.Context, string) ([]*domain.Template, error) { return nil, nil }
func (m *memoryTemplates) Update(context.Context, *domain.Template) error { return nil }
func (m *memoryTemplates) Delete(context.Context, uuid.UUID) error { return nil }
