package model

import (
	"time"

	"github.com/leonart92/pronostiX-sub002/internal/domain"

	"github.com/google/uuid"
)

// UserSubscriptionStatus is the denormalized cache of the user's current
// subscription status. It is a read optimization derived from the
// Subscription row and is never authoritative.
type UserSubscriptionStatus string

const (
	UserSubStatusNone      UserSubscriptionStatus = "none"
	UserSubStatusActive    UserSubscriptionStatus = "active"
	UserSubStatusTrialing  UserSubscriptionStatus = "trialing"
	UserSubStatusPastDue   UserSubscriptionStatus = "past_due"
	UserSubStatusExpired   UserSubscriptionStatus = "expired"
	UserSubStatusCancelled UserSubscriptionStatus = "cancelled"
)

// CacheStatusFor maps a subscription status onto the user-facing cache value.
// The mapping is 1:1 and exhaustive; trialing is surfaced verbatim rather
// than coerced to active. Unknown values fall back to none so a bad provider
// string can never fabricate an entitlement.
func CacheStatusFor(s SubscriptionStatus) UserSubscriptionStatus {
	switch s {
	case SubscriptionStatusActive:
		return UserSubStatusActive
	case SubscriptionStatusTrialing:
		return UserSubStatusTrialing
	case SubscriptionStatusPastDue:
		return UserSubStatusPastDue
	case SubscriptionStatusExpired:
		return UserSubStatusExpired
	case SubscriptionStatusCancelled:
		return UserSubStatusCancelled
	default:
		return UserSubStatusNone
	}
}

// User is owned by the account service; this core only maintains the billing
// projection fields (cached status, current subscription reference, provider
// customer id).
type User struct {
	ID       string
	Email    string
	Username string

	StripeCustomerID   string
	SubscriptionStatus UserSubscriptionStatus
	SubscriptionID     *string

	RegisteredAt time.Time
	UpdatedAt    time.Time
}

func NewUser(id, email, username string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" || username == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:                 id,
		Email:              email,
		Username:           username,
		SubscriptionStatus: UserSubStatusNone,
		RegisteredAt:       now,
		UpdatedAt:          now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// ReflectSubscription overwrites the cached status from the subscription and
// links the subscription reference when absent. Safe to repeat.
func (u *User) ReflectSubscription(sub *Subscription) {
	u.SubscriptionStatus = CacheStatusFor(sub.Status)
	if u.SubscriptionID == nil {
		id := sub.ID
		u.SubscriptionID = &id
	}
	u.UpdatedAt = time.Now()
}
