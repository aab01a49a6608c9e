package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/domain/referral"
	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/infrastructure/email"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
	"github.com/lingoreader/landing-go/internal/infrastructure/security"
)

// NewsletterConfig carries the links placed in the welcome email.
type NewsletterConfig struct {
	SiteName   string
	LandingURL string
	AppURL     string
}

// SubscribeRequest is a newsletter signup.
type SubscribeRequest struct {
	SessionID string
	Email     string
	Storage   referral.Storage
}

// SubscribeResult reports the stored subscriber and whether it is new.
type SubscribeResult struct {
	Subscriber *user.Subscriber
	Created    bool
}

// NewsletterService stores newsletter subscribers and sends the welcome email.
type NewsletterService struct {
	subscribers user.SubscriberRepository
	visitors    *VisitorService
	mailer      email.Service
	sink        analytics.Sink
	cfg         NewsletterConfig
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewNewsletterService creates the newsletter service; mailer may be nil when
// email delivery is not configured.
func NewNewsletterService(subscribers user.SubscriberRepository, visitors *VisitorService, mailer email.Service, sink analytics.Sink, cfg NewsletterConfig, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *NewsletterService {
	if sink == nil {
		sink = analytics.Nop
	}
	return &NewsletterService{
		subscribers: subscribers,
		visitors:    visitors,
		mailer:      mailer,
		sink:        sink,
		cfg:         cfg,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Subscribe stores the address once. Repeat signups return the existing row
// without a second welcome email.
func (s *NewsletterService) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResult, error) {
	marker := s.perfTracker.StartOperation("newsletter:subscribe", req.SessionID)
	defer marker.Complete()

	addr, err := NormaliseEmail(req.Email)
	if err != nil {
		return nil, err
	}

	existing, err := s.subscribers.FindByEmail(ctx, addr)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("lookup subscriber: %w", err)
	}
	if existing != nil {
		marker.SetSuccess(true)
		return &SubscribeResult{Subscriber: existing}, nil
	}

	sub := &user.Subscriber{
		ID:        security.GenerateULID(),
		Email:     addr,
		SessionID: req.SessionID,
		CreatedAt: time.Now().UTC(),
	}
	sub.ReferralCode, _ = referral.Get(req.Storage)
	if req.SessionID != "" && s.visitors != nil {
		if profile, err := s.visitors.Get(ctx, req.SessionID); err == nil {
			sub.ReferralSource = string(profile.ReferralSource)
		} else if !errors.Is(err, visitor.ErrNotFound) {
			s.logger.Visitor().Warn("Failed to load visitor for subscriber", "error", err)
		}
	}

	if err := s.subscribers.Create(ctx, sub); err != nil {
		if errors.Is(err, user.ErrDuplicateSubscriber) {
			existing, findErr := s.subscribers.FindByEmail(ctx, addr)
			if findErr == nil && existing != nil {
				return &SubscribeResult{Subscriber: existing}, nil
			}
		}
		marker.SetError(err)
		return nil, fmt.Errorf("store subscriber: %w", err)
	}

	s.sendWelcome(sub, req.Storage)
	s.sink.Emit(analytics.EventSubscribe, analytics.Properties{
		"email":          addr,
		"referralSource": sub.ReferralSource,
		"referralCode":   sub.ReferralCode,
	})
	marker.SetSuccess(true)
	return &SubscribeResult{Subscriber: sub, Created: true}, nil
}

func (s *NewsletterService) sendWelcome(sub *user.Subscriber, store referral.Storage) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.SendNewsletterWelcome(email.WelcomeEmail{
		To:        sub.Email,
		SiteName:  s.cfg.SiteName,
		SiteURL:   s.cfg.LandingURL,
		SignupURL: referral.AddToURL(s.cfg.AppURL+"/signup", store),
	})
	if err != nil {
		s.logger.LogError(logging.ChannelSystem, "newsletter:welcome_email", err, map[string]any{"subscriberId": sub.ID})
	}
}
