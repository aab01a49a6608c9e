package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/domain/referral"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/domain/widget"
	"github.com/lingoreader/landing-go/internal/infrastructure/backend"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
)

// ErrDemoRejected is returned when the backend answers success=false.
var ErrDemoRejected = errors.New("demo signup rejected")

// DemoRequest is a demo account request for a language pair.
type DemoRequest struct {
	SessionID      string
	NativeLanguage string
	TargetLanguage string
	Level          string
	Storage        referral.Storage
}

// DemoResult is where the visitor continues after a demo signup.
type DemoResult struct {
	RedirectURL string `json:"redirectUrl"`
}

// DemoService creates demo accounts.
type DemoService struct {
	visitors    *VisitorService
	api         backend.API
	sink        analytics.Sink
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewDemoService creates a new demo signup service.
func NewDemoService(visitors *VisitorService, api backend.API, sink analytics.Sink, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DemoService {
	if sink == nil {
		sink = analytics.Nop
	}
	return &DemoService{visitors: visitors, api: api, sink: sink, logger: logger, perfTracker: perfTracker}
}

// Signup validates the pair, creates the demo account and decorates the
// redirect with the stored referral code.
func (s *DemoService) Signup(ctx context.Context, req DemoRequest) (*DemoResult, error) {
	marker := s.perfTracker.StartOperation("demo:signup", req.SessionID)
	defer marker.Complete()

	native, err := visitor.ParseLanguage(req.NativeLanguage)
	if err != nil {
		return nil, fmt.Errorf("native language: %w", err)
	}
	target, err := visitor.ParseLanguage(req.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("target language: %w", err)
	}
	level, err := visitor.ParseLevel(req.Level)
	if err != nil {
		return nil, err
	}

	res, err := s.api.DemoSignup(ctx, backend.DemoSignupRequest{
		NativeLanguage: string(native),
		TargetLanguage: string(target),
		Level:          string(level),
	})
	if err != nil {
		marker.SetError(err)
		s.logger.LogError(logging.ChannelBackend, "demo_signup", err, map[string]any{"status": backend.StatusOf(err)})
		return nil, err
	}
	if !res.Success || res.RedirectURL == "" {
		msg := res.Error
		if msg == "" {
			msg = "no redirect returned"
		}
		err := fmt.Errorf("%w: %s", ErrDemoRejected, msg)
		marker.SetError(err)
		return nil, err
	}

	if req.SessionID != "" {
		if _, err := s.visitors.ApplySelection(ctx, req.SessionID, widget.Selection{NativeLanguage: native, Language: target, Level: level}); err != nil {
			s.logger.Visitor().Warn("Failed to record demo selection", "sessionId", logging.SanitizeSessionID(req.SessionID), "error", err)
		}
	}

	redirect := referral.AddToURL(res.RedirectURL, req.Storage)
	code, _ := referral.Get(req.Storage)
	s.sink.Emit(analytics.EventDemoSignup, analytics.Properties{
		"nativeLanguage": string(native),
		"targetLanguage": string(target),
		"level":          string(level),
		"referralCode":   code,
	})
	marker.SetSuccess(true)
	return &DemoResult{RedirectURL: redirect}, nil
}
