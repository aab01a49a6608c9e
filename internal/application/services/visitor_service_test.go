package services

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/domain/referral"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/domain/widget"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestBootstrapCreatesProfileAndAttributesSource(t *testing.T) {
	store := newMemStore()
	visits := &fakeVisits{}
	svc := NewVisitorService(store, visits, nil, logging.NewNopLogger(), performance.NewTracker(nil, nil))
	storage := mapStorage{}

	p, err := svc.Bootstrap(context.Background(), BootstrapRequest{
		SessionID:      "sess-1",
		PageURL:        mustURL(t, "https://lingoreader.app/?ref=friend42&utm_source=reddit"),
		AcceptLanguage: "de-DE,de;q=0.9,en;q=0.8",
		Storage:        storage,
	})
	require.NoError(t, err)

	assert.Equal(t, visitor.LanguageCode("de"), p.NativeLanguage)
	assert.Equal(t, referral.SourceReddit, p.ReferralSource)
	assert.Equal(t, "friend42", p.ReferralCode)
	assert.Equal(t, "friend42", storage[referral.StorageKey])
	assert.Equal(t, "reddit", storage[referral.SourceKey])

	require.Len(t, visits.visits, 1)
	assert.Equal(t, "/", visits.visits[0].LandingPath)
	require.NotNil(t, visits.visits[0].ReferralCode)
	assert.Equal(t, "friend42", *visits.visits[0].ReferralCode)
}

func TestBootstrapComputesSourceOnce(t *testing.T) {
	svc, _ := newTestVisitorService(nil)
	storage := mapStorage{}
	ctx := context.Background()

	_, err := svc.Bootstrap(ctx, BootstrapRequest{SessionID: "s", PageURL: mustURL(t, "https://x/?utm_source=facebook"), Storage: storage})
	require.NoError(t, err)

	p, err := svc.Bootstrap(ctx, BootstrapRequest{SessionID: "s", PageURL: mustURL(t, "https://x/?utm_source=instagram"), Storage: storage})
	require.NoError(t, err)
	assert.Equal(t, referral.SourceFacebook, p.ReferralSource)
}

func TestBootstrapDirectIsNotPersisted(t *testing.T) {
	svc, _ := newTestVisitorService(nil)
	storage := mapStorage{}

	p, err := svc.Bootstrap(context.Background(), BootstrapRequest{SessionID: "s", PageURL: mustURL(t, "https://x/"), Storage: storage})
	require.NoError(t, err)
	assert.Equal(t, referral.SourceDirect, p.ReferralSource)
	_, ok := storage[referral.SourceKey]
	assert.False(t, ok)
}

func TestBootstrapNativeLanguageOnlyOnCreate(t *testing.T) {
	svc, _ := newTestVisitorService(nil)
	ctx := context.Background()

	_, err := svc.Bootstrap(ctx, BootstrapRequest{SessionID: "s", AcceptLanguage: "fr-FR"})
	require.NoError(t, err)
	_, err = svc.SetNativeLanguage(ctx, "s", "es")
	require.NoError(t, err)

	p, err := svc.Bootstrap(ctx, BootstrapRequest{SessionID: "s", AcceptLanguage: "fr-FR"})
	require.NoError(t, err)
	assert.Equal(t, visitor.LanguageCode("es"), p.NativeLanguage)
}

func TestBootstrapPrefersStoredLanguagePreference(t *testing.T) {
	svc, _ := newTestVisitorService(nil)
	storage := mapStorage{visitor.PreferenceKey: "ja"}

	p, err := svc.Bootstrap(context.Background(), BootstrapRequest{SessionID: "s", AcceptLanguage: "fr-FR", Storage: storage})
	require.NoError(t, err)
	assert.Equal(t, visitor.LanguageCode("ja"), p.NativeLanguage)

	p, err = svc.Bootstrap(context.Background(), BootstrapRequest{
		SessionID:             "t",
		AcceptLanguage:        "fr-FR",
		DefaultNativeLanguage: "pt",
		Storage:               storage,
	})
	require.NoError(t, err)
	assert.Equal(t, visitor.LanguageCode("pt"), p.NativeLanguage)
}

func TestSetTokenRefusesDifferentToken(t *testing.T) {
	svc, _ := newTestVisitorService(nil)
	ctx := context.Background()

	_, err := svc.SetToken(ctx, "s", "tok-1")
	require.NoError(t, err)
	p, err := svc.SetToken(ctx, "s", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", p.AuthToken)

	_, err = svc.SetToken(ctx, "s", "tok-2")
	assert.ErrorIs(t, err, visitor.ErrTokenConflict)

	p, err = svc.ReplaceToken(ctx, "s", "tok-2")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", p.AuthToken)
}

func TestBlankTokenIsRejected(t *testing.T) {
	svc, _ := newTestVisitorService(nil)
	ctx := context.Background()

	_, err := svc.SetToken(ctx, "s", "   ")
	assert.ErrorIs(t, err, visitor.ErrEmptyToken)
	_, err = svc.ReplaceToken(ctx, "s", "\t")
	assert.ErrorIs(t, err, visitor.ErrEmptyToken)
	_, err = svc.CompleteEmailSignup(ctx, "s", "ana@example.com", " ")
	assert.ErrorIs(t, err, visitor.ErrEmptyToken)

	p, err := svc.GetOrCreate(ctx, "s")
	require.NoError(t, err)
	assert.False(t, p.HasToken())
}

func TestSettersValidateAndVersion(t *testing.T) {
	svc, _ := newTestVisitorService(nil)
	ctx := context.Background()

	_, err := svc.SetSelectedLanguage(ctx, "s", "klingon")
	assert.ErrorIs(t, err, visitor.ErrUnsupportedLanguage)
	_, err = svc.SetTargetLevel(ctx, "s", "expert")
	assert.ErrorIs(t, err, visitor.ErrUnsupportedLevel)

	p, err := svc.SetSelectedLanguage(ctx, "s", "es")
	require.NoError(t, err)
	v := p.Version

	p, err = svc.SetSelectedLanguage(ctx, "s", "es")
	require.NoError(t, err)
	assert.Equal(t, v, p.Version, "no-op must not bump the version")

	p, err = svc.SetTargetLevel(ctx, "s", "beginner")
	require.NoError(t, err)
	assert.Equal(t, v+1, p.Version)
}

func TestListenersSeeCommittedMutations(t *testing.T) {
	svc, _ := newTestVisitorService(nil)
	ctx := context.Background()

	var mu sync.Mutex
	var verbs []string
	svc.Subscribe(func(p *visitor.Profile, verb string) {
		mu.Lock()
		defer mu.Unlock()
		verbs = append(verbs, verb)
	})

	_, err := svc.SetSelectedLanguage(ctx, "s", "it")
	require.NoError(t, err)
	_, err = svc.SetSelectedLanguage(ctx, "s", "it")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, "s"))

	assert.Equal(t, []string{"set_selected_language", "logout"}, verbs)
}

func TestApplySelectionEmitsEvent(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := newTestVisitorService(sink)

	p, err := svc.ApplySelection(context.Background(), "s", widget.Selection{NativeLanguage: "en", Language: "es", Level: "beginner"})
	require.NoError(t, err)
	assert.Equal(t, visitor.LanguageCode("en"), p.NativeLanguage)
	assert.Equal(t, visitor.LevelBeginner, p.TargetLevel)
	assert.Equal(t, []analytics.EventName{analytics.EventSelectLanguage}, sink.names())
}

func TestCompleteEmailSignup(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := newTestVisitorService(sink)
	ctx := context.Background()

	_, err := svc.CompleteEmailSignup(ctx, "s", "not-an-email", "tok")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	p, err := svc.CompleteEmailSignup(ctx, "s", " A@B.com ", "tok")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", p.Email)
	assert.Equal(t, visitor.ChannelEmail, p.SignupChannel)
	assert.Equal(t, "tok", p.AuthToken)
	assert.Equal(t, []analytics.EventName{analytics.EventLead}, sink.names())
}

func TestLogoutRemovesProfile(t *testing.T) {
	svc, store := newTestVisitorService(nil)
	ctx := context.Background()

	_, err := svc.SetToken(ctx, "s", "tok")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, "s"))

	_, err = store.Get(ctx, "s")
	assert.ErrorIs(t, err, visitor.ErrNotFound)
	assert.NoError(t, svc.Logout(ctx, "s"))
}

func TestConcurrentAttemptsAreSerialised(t *testing.T) {
	svc, _ := newTestVisitorService(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.BeginCheckoutAttempt(ctx, "s")
		}()
	}
	wg.Wait()

	p, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 50, p.CheckoutAttempts)
}

func TestNormaliseEmail(t *testing.T) {
	got, err := NormaliseEmail("User@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", got)

	for _, bad := range []string{"", "nobody", "Name <a@b.com>", "a@localhost"} {
		_, err := NormaliseEmail(bad)
		assert.ErrorIs(t, err, ErrInvalidEmail, bad)
	}
}
