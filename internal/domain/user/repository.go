// Package user defines the records kept about landing visitors and the
// repositories that persist them. Live visitor state is held by the visitor
// store; these records are the durable log.
package user

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateSubscriber is returned when an address is already subscribed.
var ErrDuplicateSubscriber = errors.New("email already subscribed")

// Visit records one bootstrap of a visitor session.
type Visit struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	ReferralSource string    `json:"referralSource"`
	ReferralCode   *string   `json:"referralCode,omitempty"`
	NativeLanguage *string   `json:"nativeLanguage,omitempty"`
	LandingPath    string    `json:"landingPath"`
	UserAgent      string    `json:"userAgent"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CheckoutAttempt records one run of the trial checkout.
type CheckoutAttempt struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"sessionId"`
	Attempt       int           `json:"attempt"`
	SignupChannel string        `json:"signupChannel"`
	State         string        `json:"state"`
	Destination   string        `json:"destination"`
	Message       string        `json:"message"`
	Duration      time.Duration `json:"duration"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Subscriber is a newsletter signup.
type Subscriber struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	SessionID      string    `json:"sessionId"`
	ReferralSource string    `json:"referralSource"`
	ReferralCode   string    `json:"referralCode"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SourceCount is the number of visits attributed to a referral source.
type SourceCount struct {
	Source string `json:"source"`
	Visits int    `json:"visits"`
}

// VisitRepository defines the operations for persisting Visit records.
type VisitRepository interface {
	Create(ctx context.Context, visit *Visit) error
	FindBySessionID(ctx context.Context, sessionID string) ([]*Visit, error)
	CountBySource(ctx context.Context, since time.Time) ([]SourceCount, error)
}

// CheckoutAttemptRepository defines the operations for persisting checkout attempts.
type CheckoutAttemptRepository interface {
	Create(ctx context.Context, attempt *CheckoutAttempt) error
	FindBySessionID(ctx context.Context, sessionID string) ([]*CheckoutAttempt, error)
}

// SubscriberRepository defines the operations for persisting newsletter subscribers.
type SubscriberRepository interface {
	Create(ctx context.Context, subscriber *Subscriber) error
	FindByEmail(ctx context.Context, email string) (*Subscriber, error)
}
