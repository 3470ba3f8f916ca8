package model

import (
	"time"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Entitled reports whether the status still grants access.
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Subscription mirrors one provider-side subscription object. The provider
// snapshot is authoritative; local fields are a projection of the last
// applied snapshot plus catalog-seeded defaults for rows created before any
// provider data existed.
type Subscription struct {
	ID      string // UUID
	UserID  string // UUID
	PlanKey string // catalog key, e.g. "monthly"

	StripeSubscriptionID string // external id, unique once known
	StripeCustomerID     string
	StripePriceID        string

	Status             SubscriptionStatus
	StartAt            time.Time
	EndAt              time.Time
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CancelledAt        *time.Time

	Amount   int64 // denormalized from the catalog, in minor units
	Currency string

	// LastEventAt is the creation timestamp of the last provider event (or
	// explicit sync) applied to this row. Snapshots older than this marker
	// are dropped instead of regressing state.
	LastEventAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionSnapshot is the provider's authoritative view of a
// subscription, carried by webhook payloads and gateway reads alike so both
// paths flow through identical upsert logic.
type SubscriptionSnapshot struct {
	SubscriptionID    string
	CustomerID        string
	PriceID           string
	Status            SubscriptionStatus
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	CancelledAt       *time.Time
	// EventAt is when the provider produced this view: the event creation
	// time on the push path, the retrieval time on the pull path.
	EventAt time.Time
	// Optional hints for rows that do not exist locally yet.
	UserID  string
	PlanKey string
}

func (s *SubscriptionSnapshot) Validate() error {
	if s.SubscriptionID == "" || s.Status == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// NewSubscription seeds a local row from the catalog before any provider
// snapshot exists. The period end is computed once from the plan duration
// and overwritten by the first applied snapshot.
func NewSubscription(id, userID string, plan *Plan, externalID, customerID string, now time.Time) (*Subscription, error) {
	if id == "" || userID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	end := now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
	return &Subscription{
		ID:                   id,
		UserID:               userID,
		PlanKey:              plan.Key,
		StripeSubscriptionID: externalID,
		StripeCustomerID:     customerID,
		StripePriceID:        plan.StripePriceID,
		Status:               SubscriptionStatusActive,
		StartAt:              now,
		EndAt:                end,
		CurrentPeriodStart:   now,
		CurrentPeriodEnd:     end,
		Amount:               plan.Amount,
		Currency:             plan.Currency,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// ApplySnapshot copies all snapshot-derived fields onto the row
// (last-applied-wins) and advances the last-applied marker. It reports false
// without mutating anything when the snapshot is older than what has already
// been applied.
func (s *Subscription) ApplySnapshot(snap *SubscriptionSnapshot) bool {
	if snap.EventAt.Before(s.LastEventAt) {
		return false
	}
	if snap.SubscriptionID != "" {
		s.StripeSubscriptionID = snap.SubscriptionID
	}
	if snap.CustomerID != "" {
		s.StripeCustomerID = snap.CustomerID
	}
	if snap.PriceID != "" {
		s.StripePriceID = snap.PriceID
	}
	s.Status = snap.Status
	if !snap.PeriodStart.IsZero() {
		s.CurrentPeriodStart = snap.PeriodStart
	}
	if !snap.PeriodEnd.IsZero() {
		s.CurrentPeriodEnd = snap.PeriodEnd
		s.EndAt = snap.PeriodEnd
	}
	s.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
	if snap.CancelledAt != nil {
		s.CancelledAt = snap.CancelledAt
	}
	s.LastEventAt = snap.EventAt
	s.UpdatedAt = time.Now()
	return true
}

// Cancel marks the subscription cancelled at the given moment. Cancellation
// is a status transition; rows are never deleted.
func (s *Subscription) Cancel(at time.Time) {
	s.Status = SubscriptionStatusCancelled
	if s.CancelledAt == nil {
		s.CancelledAt = &at
	}
	s.UpdatedAt = time.Now()
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive && time.Now().Before(s.EndAt)
}

// DaysRemaining returns whole days until the subscription end, never negative.
func (s *Subscription) DaysRemaining() int {
	d := int(time.Until(s.EndAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// NextBillingDate returns the upcoming renewal date, or nil when the
// subscription will lapse at period end instead of renewing.
func (s *Subscription) NextBillingDate() *time.Time {
	if s.CancelAtPeriodEnd {
		return nil
	}
	end := s.CurrentPeriodEnd
	return &end
}
