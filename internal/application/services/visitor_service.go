// Package services provides application-level orchestration services
package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/domain/referral"
	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/domain/widget"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
	"github.com/lingoreader/landing-go/internal/infrastructure/security"
)

// ErrInvalidEmail rejects malformed addresses.
var ErrInvalidEmail = errors.New("invalid email address")

// ProfileListener observes committed profile mutations. Deleted profiles are
// reported with verb "logout" and the last known state.
type ProfileListener func(profile *visitor.Profile, verb string)

const lockStripes = 64

// VisitorService owns the visitor profile store. Mutations of one session are
// serialised; listeners run after the store write without locks held.
type VisitorService struct {
	store       visitor.Store
	visits      user.VisitRepository
	sink        analytics.Sink
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	now         func() time.Time

	locks       [lockStripes]sync.Mutex
	listenersMu sync.RWMutex
	listeners   []ProfileListener
}

// NewVisitorService creates a visitor service; visits may be nil to skip the visit log.
func NewVisitorService(store visitor.Store, visits user.VisitRepository, sink analytics.Sink, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *VisitorService {
	if sink == nil {
		sink = analytics.Nop
	}
	return &VisitorService{
		store:       store,
		visits:      visits,
		sink:        sink,
		logger:      logger,
		perfTracker: perfTracker,
		now:         time.Now,
	}
}

// Subscribe registers a listener for committed mutations.
func (s *VisitorService) Subscribe(listener ProfileListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *VisitorService) notify(profile *visitor.Profile, verb string) {
	s.listenersMu.RLock()
	listeners := append([]ProfileListener(nil), s.listeners...)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(profile.Clone(), verb)
	}
}

func (s *VisitorService) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%lockStripes]
}

// Get returns the session's profile.
func (s *VisitorService) Get(ctx context.Context, sessionID string) (*visitor.Profile, error) {
	return s.store.Get(ctx, sessionID)
}

// GetOrCreate returns the session's profile, creating a default one when absent.
func (s *VisitorService) GetOrCreate(ctx context.Context, sessionID string) (*visitor.Profile, error) {
	return s.update(ctx, sessionID, "", func(*visitor.Profile) (bool, error) { return false, nil })
}

// update applies fn under the session lock. fn reports whether it changed anything;
// only changes are saved, versioned and announced.
func (s *VisitorService) update(ctx context.Context, sessionID, verb string, fn func(p *visitor.Profile) (bool, error)) (*visitor.Profile, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()

	profile, err := s.store.Get(ctx, sessionID)
	created := false
	if errors.Is(err, visitor.ErrNotFound) {
		profile = visitor.NewProfile(sessionID, s.now())
		created = true
	} else if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("load visitor: %w", err)
	}

	changed, err := fn(profile)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	if changed {
		profile.Touch(s.now())
	}
	if changed || created {
		if err := s.store.Save(ctx, profile); err != nil {
			lock.Unlock()
			return nil, fmt.Errorf("save visitor: %w", err)
		}
	}
	lock.Unlock()

	if changed && verb != "" {
		s.logger.Visitor().Debug("Visitor profile updated", "sessionId", logging.SanitizeSessionID(sessionID), "verb", verb, "version", profile.Version)
		s.notify(profile, verb)
	}
	return profile, nil
}

// BootstrapRequest describes a landing page mount.
type BootstrapRequest struct {
	SessionID             string
	PageURL               *url.URL
	AcceptLanguage        string
	Referrer              string
	UserAgent             string
	DefaultNativeLanguage string
	Storage               referral.Storage
}

// Bootstrap captures the referral code, creates the profile on first visit,
// attributes the referral source once and logs the visit.
func (s *VisitorService) Bootstrap(ctx context.Context, req BootstrapRequest) (*visitor.Profile, error) {
	marker := s.perfTracker.StartOperation("visitor:bootstrap", req.SessionID)
	defer marker.Complete()

	referral.Capture(req.PageURL, req.Storage, s.logger.Referral())
	code, _ := referral.Get(req.Storage)

	var query url.Values
	if req.PageURL != nil {
		query = req.PageURL.Query()
	}

	profile, err := s.update(ctx, req.SessionID, "bootstrap", func(p *visitor.Profile) (bool, error) {
		changed := false
		if p.Version == 0 && p.NativeLanguage == "" {
			p.NativeLanguage = initialNativeLanguage(req)
			changed = true
		}
		if p.ReferralSource == "" {
			stored := ""
			if req.Storage != nil {
				stored, _ = req.Storage.Get(referral.SourceKey)
			}
			p.ReferralSource = referral.DetectSource(query, stored, req.Referrer)
			if p.ReferralSource != referral.SourceDirect && req.Storage != nil {
				req.Storage.Set(referral.SourceKey, string(p.ReferralSource), referral.RetentionPeriod)
			}
			s.logger.Referral().Info("Referral source attributed", "sessionId", logging.SanitizeSessionID(p.SessionID), "source", p.ReferralSource)
			changed = true
		}
		if code != "" && p.ReferralCode != code {
			p.ReferralCode = code
			changed = true
		}
		return changed, nil
	})
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	s.recordVisit(ctx, profile, req)
	return profile, nil
}

// initialNativeLanguage prefers an explicit default, then the stored
// preference, then Accept-Language.
func initialNativeLanguage(req BootstrapRequest) visitor.LanguageCode {
	if lang, err := visitor.ParseLanguage(req.DefaultNativeLanguage); err == nil {
		return lang
	}
	if req.Storage != nil {
		if stored, ok := req.Storage.Get(visitor.PreferenceKey); ok {
			if lang, err := visitor.ParseLanguage(stored); err == nil {
				return lang
			}
		}
	}
	return visitor.DetectNativeLanguage(req.AcceptLanguage)
}

func (s *VisitorService) recordVisit(ctx context.Context, profile *visitor.Profile, req BootstrapRequest) {
	if s.visits == nil {
		return
	}
	visit := &user.Visit{
		ID:             security.GenerateULID(),
		SessionID:      profile.SessionID,
		ReferralSource: string(profile.ReferralSource),
		UserAgent:      req.UserAgent,
		CreatedAt:      s.now(),
	}
	if profile.ReferralCode != "" {
		code := profile.ReferralCode
		visit.ReferralCode = &code
	}
	if profile.NativeLanguage != "" {
		lang := string(profile.NativeLanguage)
		visit.NativeLanguage = &lang
	}
	if req.PageURL != nil {
		visit.LandingPath = req.PageURL.Path
	}
	if err := s.visits.Create(ctx, visit); err != nil {
		s.logger.LogError(logging.ChannelDatabase, "visits:create", err, map[string]any{"sessionId": logging.SanitizeSessionID(profile.SessionID)})
	}
}

// SetNativeLanguage overrides the detected native language.
func (s *VisitorService) SetNativeLanguage(ctx context.Context, sessionID, lang string) (*visitor.Profile, error) {
	code, err := visitor.ParseLanguage(lang)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, sessionID, "set_native_language", func(p *visitor.Profile) (bool, error) {
		if p.NativeLanguage == code {
			return false, nil
		}
		p.NativeLanguage = code
		return true, nil
	})
}

// SetSelectedLanguage sets the target language.
func (s *VisitorService) SetSelectedLanguage(ctx context.Context, sessionID, lang string) (*visitor.Profile, error) {
	code, err := visitor.ParseLanguage(lang)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, sessionID, "set_selected_language", func(p *visitor.Profile) (bool, error) {
		if p.TargetLanguage == code {
			return false, nil
		}
		p.TargetLanguage = code
		return true, nil
	})
}

// SetTargetLevel sets the target proficiency level.
func (s *VisitorService) SetTargetLevel(ctx context.Context, sessionID, level string) (*visitor.Profile, error) {
	parsed, err := visitor.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, sessionID, "set_target_level", func(p *visitor.Profile) (bool, error) {
		if p.TargetLevel == parsed {
			return false, nil
		}
		p.TargetLevel = parsed
		return true, nil
	})
}

// SetHasSelectedLanguage marks the language as user-confirmed or guessed.
func (s *VisitorService) SetHasSelectedLanguage(ctx context.Context, sessionID string, selected bool) (*visitor.Profile, error) {
	return s.update(ctx, sessionID, "set_has_selected_language", func(p *visitor.Profile) (bool, error) {
		if p.HasSelectedLanguage == selected {
			return false, nil
		}
		p.HasSelectedLanguage = selected
		return true, nil
	})
}

// ApplySelection records a widget pick: native language (when given), target
// language and level in one mutation.
func (s *VisitorService) ApplySelection(ctx context.Context, sessionID string, sel widget.Selection) (*visitor.Profile, error) {
	target, err := visitor.ParseLanguage(string(sel.Language))
	if err != nil {
		return nil, err
	}
	var native visitor.LanguageCode
	if sel.NativeLanguage != "" {
		if native, err = visitor.ParseLanguage(string(sel.NativeLanguage)); err != nil {
			return nil, err
		}
	}
	var level visitor.ProficiencyLevel
	if sel.Level != "" {
		if level, err = visitor.ParseLevel(string(sel.Level)); err != nil {
			return nil, err
		}
	}

	profile, err := s.update(ctx, sessionID, "select_language", func(p *visitor.Profile) (bool, error) {
		before := *p
		p.TargetLanguage = target
		if native != "" {
			p.NativeLanguage = native
		}
		if level != "" {
			p.TargetLevel = level
		}
		return before != *p, nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Emit(analytics.EventSelectLanguage, analytics.Properties{
		"nativeLanguage": string(profile.NativeLanguage),
		"targetLanguage": string(profile.TargetLanguage),
		"level":          string(profile.TargetLevel),
		"referralSource": string(profile.ReferralSource),
	})
	return profile, nil
}

// SetToken stores the auth token. A different token already held is never
// overwritten here; that takes ReplaceToken.
func (s *VisitorService) SetToken(ctx context.Context, sessionID, token string) (*visitor.Profile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, visitor.ErrEmptyToken
	}
	return s.update(ctx, sessionID, "set_token", func(p *visitor.Profile) (bool, error) {
		switch p.AuthToken {
		case token:
			return false, nil
		case "":
			p.AuthToken = token
			return true, nil
		default:
			s.logger.Auth().Warn("Refusing to overwrite auth token", "sessionId", logging.SanitizeSessionID(sessionID), "held", logging.MaskToken(p.AuthToken), "offered", logging.MaskToken(token))
			return false, visitor.ErrTokenConflict
		}
	})
}

// ReplaceToken is the explicit new-login event: any held token is replaced.
func (s *VisitorService) ReplaceToken(ctx context.Context, sessionID, token string) (*visitor.Profile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, visitor.ErrEmptyToken
	}
	return s.update(ctx, sessionID, "replace_token", func(p *visitor.Profile) (bool, error) {
		if p.AuthToken == token {
			return false, nil
		}
		p.AuthToken = token
		return true, nil
	})
}

// SetSignupChannel records the identity method.
func (s *VisitorService) SetSignupChannel(ctx context.Context, sessionID string, channel visitor.SignupChannel) (*visitor.Profile, error) {
	return s.update(ctx, sessionID, "set_signup_channel", func(p *visitor.Profile) (bool, error) {
		if p.SignupChannel == channel {
			return false, nil
		}
		p.SignupChannel = channel
		return true, nil
	})
}

// SetEmail records the visitor's email address.
func (s *VisitorService) SetEmail(ctx context.Context, sessionID, email string) (*visitor.Profile, error) {
	normalised, err := NormaliseEmail(email)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, sessionID, "set_email", func(p *visitor.Profile) (bool, error) {
		if p.Email == normalised {
			return false, nil
		}
		p.Email = normalised
		return true, nil
	})
}

// CompleteEmailSignup is the email registration completion: a new login on the
// email channel.
func (s *VisitorService) CompleteEmailSignup(ctx context.Context, sessionID, email, token string) (*visitor.Profile, error) {
	normalised, err := NormaliseEmail(email)
	if err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, visitor.ErrEmptyToken
	}

	profile, err := s.update(ctx, sessionID, "complete_email_signup", func(p *visitor.Profile) (bool, error) {
		before := *p
		p.Email = normalised
		p.AuthToken = token
		p.SignupChannel = visitor.ChannelEmail
		return before != *p, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Auth().Info("Email signup completed", "sessionId", logging.SanitizeSessionID(sessionID), "token", logging.MaskToken(token))
	s.sink.Emit(analytics.EventLead, analytics.Properties{
		"channel":        string(visitor.ChannelEmail),
		"email":          normalised,
		"referralSource": string(profile.ReferralSource),
	})
	return profile, nil
}

// BeginCheckoutAttempt increments and returns the session's attempt counter.
func (s *VisitorService) BeginCheckoutAttempt(ctx context.Context, sessionID string) (*visitor.Profile, error) {
	return s.update(ctx, sessionID, "checkout_attempt", func(p *visitor.Profile) (bool, error) {
		p.CheckoutAttempts++
		return true, nil
	})
}

// Logout tears the profile down.
func (s *VisitorService) Logout(ctx context.Context, sessionID string) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	profile, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, visitor.ErrNotFound) {
		lock.Unlock()
		return nil
	}
	if err == nil {
		err = s.store.Delete(ctx, sessionID)
	}
	lock.Unlock()
	if err != nil {
		return fmt.Errorf("logout visitor: %w", err)
	}

	s.logger.Auth().Info("Visitor logged out", "sessionId", logging.SanitizeSessionID(sessionID))
	s.notify(profile, "logout")
	return nil
}

// NormaliseEmail validates and lower-cases a bare address.
func NormaliseEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" || !strings.Contains(addr.Address, ".") {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
