package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SignalRepository defines the interface for spot and futures signal storage.
// The kind tag selects the table.
type SignalRepository interface {
	// Create inserts a signal. For futures signals with a SourceRef the insert is
	// idempotent: created is false when the source was already recorded.
	Create(ctx context.Context, signal *Signal) (created bool, err error)

	// GetByID retrieves a signal of the given kind
	GetByID(ctx context.Context, kind SignalKind, id uuid.UUID) (*Signal, error)

	// List retrieves signals newest first
	List(ctx context.Context, kind SignalKind, filter SignalFilter) ([]*Signal, error)

	// Update rewrites the price fields of an active signal
	Update(ctx context.Context, signal *Signal) error

	// UpdateStatus moves an active signal to status. Returns INVALID_TRANSITION
	// when the stored signal is no longer active.
	UpdateStatus(ctx context.Context, kind SignalKind, id uuid.UUID, status string) error

	// ClaimSend stamps sent_at if the signal is active and has never been sent.
	// Returns false when another caller already claimed it and
	// INVALID_TRANSITION when the signal is no longer active.
	ClaimSend(ctx context.Context, kind SignalKind, id uuid.UUID, at time.Time) (bool, error)

	// ReleaseSend clears sent_at after a fan-out that reached nobody
	ReleaseSend(ctx context.Context, kind SignalKind, id uuid.UUID) error

	// RecordDelivery stores the successful delivery count after fan-out
	RecordDelivery(ctx context.Context, kind SignalKind, id uuid.UUID, delivered int) error

	// ExistsBySourceRef reports whether a futures signal was already derived from ref
	ExistsBySourceRef(ctx context.Context, ref string) (bool, error)

	// ReleaseClosedPositions archives the source refs of a trader's signals whose
	// position is not in openRefs any more, so a reopened position yields a new
	// signal. Returns the number of refs archived.
	ReleaseClosedPositions(ctx context.Context, traderExternalID string, openRefs []string, at time.Time) (int, error)

	// Stats counts signals by status
	Stats(ctx context.Context, kind SignalKind) (*SignalStats, error)
}

// SignalCounter is the persisted daily signal cap.
type SignalCounter interface {
	// TryIncrement atomically increments the counter for day if it is below cap.
	TryIncrement(ctx context.Context, day string, cap int) (bool, error)

	// Release gives back one slot, used when an accepted candidate is not stored.
	Release(ctx context.Context, day string) error

	// Count returns the number of accepted signals for day
	Count(ctx context.Context, day string) (int, error)
}

// TraderRepository defines the interface for leaderboard traders
type TraderRepository interface {
	// UpsertSnapshots inserts or refreshes traders by external id
	UpsertSnapshots(ctx context.Context, snapshots []TraderSnapshot, at time.Time) error

	// GetByID retrieves a trader by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Trader, error)

	// GetByExternalID retrieves a trader by leaderboard id
	GetByExternalID(ctx context.Context, externalID string) (*Trader, error)

	// List retrieves traders
	List(ctx context.Context, filter TraderFilter) ([]*Trader, error)

	// SetFollowed changes the followed flag. locked marks an operator decision.
	SetFollowed(ctx context.Context, id uuid.UUID, followed, locked bool) error

	// ApplyPolicyFollows sets is_followed for every unlocked trader: true for
	// the given external ids, false for the rest. Returns the number changed.
	ApplyPolicyFollows(ctx context.Context, followedExternalIDs []string) (int, error)

	// ReleaseLock clears the operator override
	ReleaseLock(ctx context.Context, id uuid.UUID) error
}

// SubscriberRepository defines the interface for bot subscribers
type SubscriberRepository interface {
	// Upsert registers a subscriber or refreshes its profile and activity.
	// New subscribers start on the free tier.
	Upsert(ctx context.Context, subscriber *Subscriber) (*Subscriber, error)

	// GetByUserID retrieves a subscriber
	GetByUserID(ctx context.Context, userID int64) (*Subscriber, error)

	// List retrieves subscribers
	List(ctx context.Context, filter SubscriberFilter) ([]*Subscriber, error)

	// ListActiveIDs returns active subscriber ids for an audience ("all" or a tier)
	ListActiveIDs(ctx context.Context, audience string) ([]int64, error)

	// CountActive counts active subscribers for an audience
	CountActive(ctx context.Context, audience string) (int, error)

	// Update changes tier and active flag
	Update(ctx context.Context, userID int64, tier string, active bool) error

	// SetActive toggles the active flag only
	SetActive(ctx context.Context, userID int64, active bool) error

	// Stats counts subscribers by tier
	Stats(ctx context.Context) (*SubscriberStats, error)
}

// TemplateRepository defines the interface for message templates
type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Template, error)
	List(ctx context.Context, templateType string) ([]*Template, error)
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// BroadcastRepository defines the interface for broadcasts
type BroadcastRepository interface {
	Create(ctx context.Context, b *Broadcast) error
	GetByID(ctx context.Context, id uuid.UUID) (*Broadcast, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Broadcast, error)

	// Update rewrites title/content/audience while editable; resets to draft.
	Update(ctx context.Context, b *Broadcast) error

	// Delete removes a broadcast that has not been sent
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkPrepared stores a new token and the targeted count
	MarkPrepared(ctx context.Context, id uuid.UUID, token string, targeted int, at time.Time) error

	// ClaimSend moves prepared -> sending when token matches. Returns false when
	// the broadcast was not in that state.
	ClaimSend(ctx context.Context, id uuid.UUID, token string) (bool, error)

	// ReleaseSend moves sending back to prepared so the same token can confirm again
	ReleaseSend(ctx context.Context, id uuid.UUID) error

	// Complete stores the final status and tallies
	Complete(ctx context.Context, id uuid.UUID, status string, report *DeliveryReport, at time.Time) error

	Stats(ctx context.Context) (*BroadcastStats, error)
}

// SettingsRepository defines the interface for futures_settings key/values
type SettingsRepository interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
	Set(ctx context.Context, key, value string) error
}

// AuditRepository defines the interface for the audit log
type AuditRepository interface {
	Insert(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// UserRepository defines the interface for dashboard operators
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*User, error)

	// List retrieves all users, newest first
	List(ctx context.Context) ([]*User, error)

	// Update rewrites username, password hash, role and active flag
	Update(ctx context.Context, user *User) error

	// TouchLogin records a successful login
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// IntegrationRepository stores provider credentials already encrypted
type IntegrationRepository interface {
	List(ctx context.Context) ([]*Integration, error)
	Get(ctx context.Context, provider string) (*Integration, error)
	Upsert(ctx context.Context, integration *Integration) error
	Delete(ctx context.Context, provider string) error
}
