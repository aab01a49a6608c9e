package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/domain/referral"
	"github.com/lingoreader/landing-go/internal/infrastructure/email"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
)

func newNewsletterFixture(mailer *fakeMailer) (*NewsletterService, *VisitorService, *fakeSubscribers, *recordingSink) {
	sink := &recordingSink{}
	visitors, _ := newTestVisitorService(sink)
	subs := &fakeSubscribers{}
	cfg := NewsletterConfig{SiteName: "Lingo Reader", LandingURL: "https://lingoreader.app", AppURL: "https://app.lingoreader.app"}

	var svc email.Service
	if mailer != nil {
		svc = mailer
	}
	return NewNewsletterService(subs, visitors, svc, sink, cfg, logging.NewNopLogger(), performance.NewTracker(nil, nil)), visitors, subs, sink
}

func TestSubscribeStoresAndWelcomes(t *testing.T) {
	mailer := &fakeMailer{}
	svc, visitors, subs, sink := newNewsletterFixture(mailer)
	ctx := context.Background()
	storage := mapStorage{referral.StorageKey: "friend42"}

	_, err := visitors.Bootstrap(ctx, BootstrapRequest{SessionID: "s", Referrer: "https://www.reddit.com/r/languagelearning", Storage: storage})
	require.NoError(t, err)

	res, err := svc.Subscribe(ctx, SubscribeRequest{SessionID: "s", Email: "Reader@Example.com", Storage: storage})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "reader@example.com", res.Subscriber.Email)
	assert.Equal(t, "reddit", res.Subscriber.ReferralSource)
	assert.Equal(t, "friend42", res.Subscriber.ReferralCode)
	assert.Len(t, subs.subs, 1)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "reader@example.com", mailer.sent[0].To)
	assert.Equal(t, "https://app.lingoreader.app/signup?ref=friend42", mailer.sent[0].SignupURL)
	assert.Contains(t, sink.names(), analytics.EventSubscribe)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _, _, sink := newNewsletterFixture(mailer)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, SubscribeRequest{Email: "a@b.com"})
	require.NoError(t, err)
	res, err := svc.Subscribe(ctx, SubscribeRequest{Email: "A@B.com"})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Len(t, mailer.sent, 1)
	assert.Equal(t, []analytics.EventName{analytics.EventSubscribe}, sink.names())
}

func TestSubscribeRejectsInvalidEmail(t *testing.T) {
	svc, _, subs, _ := newNewsletterFixture(nil)

	_, err := svc.Subscribe(context.Background(), SubscribeRequest{Email: "nope"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.Empty(t, subs.subs)
}

func TestSubscribeSurvivesMailFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("resend down")}
	svc, _, _, _ := newNewsletterFixture(mailer)

	res, err := svc.Subscribe(context.Background(), SubscribeRequest{Email: "a@b.com"})
	require.NoError(t, err)
	assert.True(t, res.Created)
}
