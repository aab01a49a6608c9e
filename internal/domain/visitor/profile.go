// Package visitor defines the visitor profile threaded through the landing flow,
// from referral attribution through language selection to trial checkout.
package visitor

import (
	"context"
	"errors"
	"time"

	"github.com/lingoreader/landing-go/internal/domain/referral"
)

var (
	// ErrNotFound is returned by a Store when no profile exists for a session.
	ErrNotFound = errors.New("visitor profile not found")
	// ErrTokenConflict is returned when a different auth token is already held.
	ErrTokenConflict = errors.New("visitor already holds a different auth token")
	// ErrEmptyToken rejects blank auth tokens.
	ErrEmptyToken = errors.New("auth token is required")
	// ErrValidationGap is returned when a checkout lacks a target language or level.
	ErrValidationGap = errors.New("target language and level must be selected before checkout")
	// ErrUnsupportedLanguage rejects language codes outside the supported table.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrUnsupportedLevel rejects unknown proficiency levels.
	ErrUnsupportedLevel = errors.New("unsupported proficiency level")
)

// SignupChannel is the identity method a visitor authenticated with.
type SignupChannel string

const (
	ChannelUnset  SignupChannel = ""
	ChannelGoogle SignupChannel = "Google"
	ChannelEmail  SignupChannel = "email"
)

// ParseSignupChannel maps a wire value onto a channel; unknown values are unset.
func ParseSignupChannel(raw string) SignupChannel {
	switch raw {
	case "Google", "google":
		return ChannelGoogle
	case "email":
		return ChannelEmail
	default:
		return ChannelUnset
	}
}

// Profile is the per-session visitor state. Empty strings stand for unset values.
type Profile struct {
	SessionID           string           `json:"sessionId"`
	NativeLanguage      LanguageCode     `json:"nativeLanguage"`
	TargetLanguage      LanguageCode     `json:"targetLanguage"`
	TargetLevel         ProficiencyLevel `json:"targetLevel"`
	ReferralSource      referral.Source  `json:"referralSource"`
	ReferralCode        string           `json:"referralCode,omitempty"`
	SignupChannel       SignupChannel    `json:"signupChannel"`
	AuthToken           string           `json:"-"`
	Email               string           `json:"email,omitempty"`
	HasSelectedLanguage bool             `json:"hasSelectedLanguage"`
	CheckoutAttempts    int              `json:"checkoutAttempts"`
	Version             int64            `json:"version"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// NewProfile creates a profile with defaults for a fresh session.
func NewProfile(sessionID string, now time.Time) *Profile {
	return &Profile{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns an independent copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// HasToken reports whether an auth token is held.
func (p *Profile) HasToken() bool {
	return p.AuthToken != ""
}

// Touch bumps the version after a committed mutation.
func (p *Profile) Touch(now time.Time) {
	p.Version++
	p.UpdatedAt = now
}

// PendingTrialRequest is the ephemeral input to one checkout attempt.
type PendingTrialRequest struct {
	AuthToken      string
	SignupChannel  SignupChannel
	Email          string
	NativeLanguage LanguageCode
	TargetLanguage LanguageCode
	TargetLevel    ProficiencyLevel
}

// PendingTrial derives the checkout input, refusing when the selection is incomplete.
func (p *Profile) PendingTrial() (PendingTrialRequest, error) {
	if p.TargetLanguage == "" || p.TargetLevel == "" {
		return PendingTrialRequest{}, ErrValidationGap
	}
	return PendingTrialRequest{
		AuthToken:      p.AuthToken,
		SignupChannel:  p.SignupChannel,
		Email:          p.Email,
		NativeLanguage: p.NativeLanguage,
		TargetLanguage: p.TargetLanguage,
		TargetLevel:    p.TargetLevel,
	}, nil
}

// Store persists visitor profiles keyed by session.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Profile, error)
	Save(ctx context.Context, profile *Profile) error
	Delete(ctx context.Context, sessionID string) error
}

// ProfileView is the client-facing form of a profile.
type ProfileView struct {
	*Profile
	HasToken bool `json:"hasToken"`
}

// View returns the client-facing form; the token itself is never exposed.
func (p *Profile) View() ProfileView {
	return ProfileView{Profile: p, HasToken: p.HasToken()}
}
