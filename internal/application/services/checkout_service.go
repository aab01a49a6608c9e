package services

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/domain/checkout"
	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/infrastructure/backend"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
	"github.com/lingoreader/landing-go/internal/infrastructure/security"
)

// ErrCheckoutInProgress is returned while another run for the same session is processing.
var ErrCheckoutInProgress = errors.New("checkout already in progress")

// CheckoutConfig holds the orchestrator settings.
type CheckoutConfig struct {
	// AppURL is the post-signup application base URL every redirect targets.
	AppURL string
	// PacingDelay is waited after a successful trial creation before redirecting.
	PacingDelay time.Duration
}

// OutcomeListener observes every finished checkout run.
type OutcomeListener func(sessionID string, outcome *checkout.Outcome)

// CheckoutService orchestrates token bridging, trial creation and the
// channel-dependent redirect.
type CheckoutService struct {
	visitors    *VisitorService
	api         backend.API
	attempts    user.CheckoutAttemptRepository
	sink        analytics.Sink
	cfg         CheckoutConfig
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	inFlight    sync.Map
	listenersMu sync.RWMutex
	listeners   []OutcomeListener
}

// NewCheckoutService creates the orchestrator; attempts may be nil to skip the attempt log.
func NewCheckoutService(visitors *VisitorService, api backend.API, attempts user.CheckoutAttemptRepository, sink analytics.Sink, cfg CheckoutConfig, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *CheckoutService {
	if sink == nil {
		sink = analytics.Nop
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &CheckoutService{
		visitors:    visitors,
		api:         api,
		attempts:    attempts,
		sink:        sink,
		cfg:         cfg,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// OnOutcome registers a listener for finished runs.
func (s *CheckoutService) OnOutcome(listener OutcomeListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// IsProcessing reports whether a run is in flight for the session.
func (s *CheckoutService) IsProcessing(sessionID string) bool {
	_, ok := s.inFlight.Load(sessionID)
	return ok
}

// AuthFragment is the OAuth callback fragment: token, type and state.
type AuthFragment struct {
	Token string
	Type  string
	State string
}

// ParseAuthFragment reads a URL fragment as a query string; a leading '#' is
// ignored and malformed pairs are skipped.
func ParseAuthFragment(fragment string) AuthFragment {
	values, _ := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(fragment), "#"))
	return AuthFragment{
		Token: strings.TrimSpace(values.Get("token")),
		Type:  values.Get("type"),
		State: values.Get("state"),
	}
}

// Run executes one checkout attempt. Every failure is folded into the returned
// outcome; the error is non-nil only when a run is already in flight.
func (s *CheckoutService) Run(ctx context.Context, sessionID, fragment string) (*checkout.Outcome, error) {
	if _, busy := s.inFlight.LoadOrStore(sessionID, struct{}{}); busy {
		s.logger.Checkout().Warn("Checkout already in progress", "sessionId", logging.SanitizeSessionID(sessionID))
		return nil, ErrCheckoutInProgress
	}
	defer s.inFlight.Delete(sessionID)

	marker := s.perfTracker.StartOperation("checkout:run", sessionID)
	defer marker.Complete()
	start := time.Now()

	profile, err := s.visitors.BeginCheckoutAttempt(ctx, sessionID)
	if err != nil {
		s.logger.LogError(logging.ChannelCheckout, "checkout:begin", err, map[string]any{"sessionId": logging.SanitizeSessionID(sessionID)})
		outcome := checkout.Failure("")
		s.finish(ctx, sessionID, 0, "", outcome, start, marker)
		return outcome, nil
	}
	attempt := profile.CheckoutAttempts

	s.sink.Emit(analytics.EventViewContent, analytics.Properties{
		"content":        "checkout",
		"attempt":        attempt,
		"referralSource": string(profile.ReferralSource),
	})

	outcome, channel := s.execute(ctx, profile, ParseAuthFragment(fragment))
	outcome.Attempt = attempt
	s.finish(ctx, sessionID, attempt, channel, outcome, start, marker)
	return outcome, nil
}

func (s *CheckoutService) execute(ctx context.Context, profile *visitor.Profile, frag AuthFragment) (*checkout.Outcome, visitor.SignupChannel) {
	sessionID := profile.SessionID
	log := s.logger.Checkout().With("sessionId", logging.SanitizeSessionID(sessionID))

	if frag.Token != "" {
		switch {
		case !profile.HasToken():
			updated, err := s.visitors.SetToken(ctx, sessionID, frag.Token)
			if err != nil {
				log.Error("Failed to store fragment token", "error", err)
				return checkout.Failure(""), profile.SignupChannel
			}
			profile = updated
			if strings.EqualFold(frag.Type, "google") && profile.SignupChannel == visitor.ChannelUnset {
				if updated, err = s.visitors.SetSignupChannel(ctx, sessionID, visitor.ChannelGoogle); err == nil {
					profile = updated
				}
			}
			s.sink.Emit(analytics.EventLead, analytics.Properties{
				"channel":        string(profile.SignupChannel),
				"referralSource": string(profile.ReferralSource),
			})

			pending, err := profile.PendingTrial()
			if err != nil {
				log.Warn("Checkout blocked by missing selection", "step", "temporal_profile")
				return checkout.Failure(err.Error(), checkout.ActionGoBack), profile.SignupChannel
			}
			err = s.api.CreateTemporalProfile(ctx, backend.TemporalProfile{
				NativeLanguageID: string(pending.NativeLanguage),
				TargetLanguageID: string(pending.TargetLanguage),
				LanguageLevel:    string(pending.TargetLevel),
			}, pending.AuthToken)
			if ctx.Err() != nil {
				return s.cancelled(ctx, log), profile.SignupChannel
			}
			if err != nil {
				return s.failed(log, profile, err), profile.SignupChannel
			}
			log.Info("Temporal profile created", "token", logging.MaskToken(pending.AuthToken))
		case profile.AuthToken != frag.Token:
			log.Warn("Ignoring fragment token; session already holds a different one", "offered", logging.MaskToken(frag.Token))
		}
	}

	if !profile.HasToken() {
		log.Warn("Checkout without auth token")
		return checkout.Failure("Please sign in to start your free trial.", checkout.ActionGoBack), profile.SignupChannel
	}

	pending, err := profile.PendingTrial()
	if err != nil {
		log.Warn("Checkout blocked by missing selection", "step", "trial")
		return checkout.Failure(err.Error(), checkout.ActionGoBack), profile.SignupChannel
	}

	sub, err := s.api.CreateTrialSubscription(ctx, pending.AuthToken)
	if ctx.Err() != nil {
		return s.cancelled(ctx, log), pending.SignupChannel
	}
	if err != nil {
		return s.failed(log, profile, err), pending.SignupChannel
	}
	if sub != nil {
		log.Info("Trial subscription created", "subscriptionId", sub.ID, "status", sub.Status)
	}

	if !s.pace(ctx) {
		return s.cancelled(ctx, log), pending.SignupChannel
	}

	var outcome *checkout.Outcome
	switch pending.SignupChannel {
	case visitor.ChannelGoogle:
		outcome = checkout.Redirect(checkout.NavigationExternal, checkout.DestinationGoogleBridge,
			s.cfg.AppURL+"/google-bridge-sign-up?token="+url.QueryEscape(pending.AuthToken))
	case visitor.ChannelEmail:
		if pending.Email != "" {
			err := s.api.TriggerRegisterEmail(ctx, backend.RegisterEmailRequest{Email: pending.Email}, pending.AuthToken)
			if ctx.Err() != nil {
				return s.cancelled(ctx, log), pending.SignupChannel
			}
			if err != nil {
				return s.failed(log, profile, err), pending.SignupChannel
			}
		}
		outcome = checkout.Redirect(checkout.NavigationInternal, checkout.DestinationVerification, checkout.VerificationPath)
	default:
		outcome = checkout.Redirect(checkout.NavigationExternal, checkout.DestinationOnboarding,
			s.cfg.AppURL+"/onboarding?token="+url.QueryEscape(pending.AuthToken))
	}

	s.sink.Emit(analytics.EventStartTrial, analytics.Properties{
		"channel":        string(pending.SignupChannel),
		"targetLanguage": string(pending.TargetLanguage),
		"level":          string(pending.TargetLevel),
		"referralSource": string(profile.ReferralSource),
	})
	log.Info("Checkout succeeded", "destination", outcome.Destination)
	return outcome, pending.SignupChannel
}

// failed maps a backend failure to an outcome. An existing Google account is
// sent to the login bridge instead of the error panel.
func (s *CheckoutService) failed(log *slog.Logger, profile *visitor.Profile, err error) *checkout.Outcome {
	if checkout.IsAlreadyRegisteredError(err) && profile.SignupChannel == visitor.ChannelGoogle {
		log.Warn("Account already registered; redirecting to login", "error", err)
		return checkout.Redirect(checkout.NavigationExternal, checkout.DestinationLogin,
			s.cfg.AppURL+"/login?token="+url.QueryEscape(profile.AuthToken)+"&type=google")
	}

	log.Error("Checkout failed", "error", err, "status", backend.StatusOf(err))
	outcome := checkout.Failure(err.Error())
	s.sink.Emit(analytics.EventCheckoutFailed, analytics.Properties{
		"channel":        string(profile.SignupChannel),
		"status":         backend.StatusOf(err),
		"message":        outcome.Message,
		"referralSource": string(profile.ReferralSource),
	})
	return outcome
}

// cancelled maps an interrupted run. A caller that went away gets a cancelled
// outcome; an expired deadline is a failure the visitor can retry.
func (s *CheckoutService) cancelled(ctx context.Context, log *slog.Logger) *checkout.Outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn("Checkout timed out")
		return checkout.TimedOut()
	}
	log.Info("Checkout cancelled by caller")
	return checkout.Cancelled()
}

func (s *CheckoutService) pace(ctx context.Context) bool {
	if s.cfg.PacingDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.cfg.PacingDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *CheckoutService) finish(ctx context.Context, sessionID string, attempt int, channel visitor.SignupChannel, outcome *checkout.Outcome, start time.Time, marker *performance.Marker) {
	elapsed := time.Since(start)
	marker.AddMetadata("attempt", attempt)
	marker.AddMetadata("state", string(outcome.State))
	if outcome.State == checkout.StateError {
		marker.SetError(errors.New(outcome.Message))
	} else {
		marker.SetSuccess(true)
	}

	if s.attempts != nil {
		record := &user.CheckoutAttempt{
			ID:            security.GenerateULID(),
			SessionID:     sessionID,
			Attempt:       attempt,
			SignupChannel: string(channel),
			State:         string(outcome.State),
			Destination:   string(outcome.Destination),
			Message:       outcome.Message,
			Duration:      elapsed,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.attempts.Create(context.WithoutCancel(ctx), record); err != nil {
			s.logger.LogError(logging.ChannelDatabase, "checkout_attempts:create", err, map[string]any{"sessionId": logging.SanitizeSessionID(sessionID)})
		}
	}

	if outcome.State == checkout.StateCancelled {
		return
	}

	s.listenersMu.RLock()
	listeners := append([]OutcomeListener(nil), s.listeners...)
	s.listenersMu.RUnlock()
	for _, l := range listeners {
		l(sessionID, outcome)
	}
}
