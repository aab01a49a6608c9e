package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoreader/landing-go/internal/application/services"
	"github.com/lingoreader/landing-go/internal/domain/checkout"
	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/infrastructure/backend"
	"github.com/lingoreader/landing-go/internal/infrastructure/caching/stores"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
	"github.com/lingoreader/landing-go/internal/presentation/http/middleware"
	"github.com/lingoreader/landing-go/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAPI struct {
	mu       sync.Mutex
	temporal []backend.TemporalProfile
	trials   int
	block    chan struct{}
	started  chan struct{}
}

func (a *stubAPI) DemoSignup(context.Context, backend.DemoSignupRequest) (*backend.DemoSignupResult, error) {
	return &backend.DemoSignupResult{Success: true, RedirectURL: "https://app.test/demo"}, nil
}

func (a *stubAPI) CreateTemporalProfile(_ context.Context, p backend.TemporalProfile, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.temporal = append(a.temporal, p)
	return nil
}

func (a *stubAPI) CreateTrialSubscription(ctx context.Context, _ string) (*backend.SubscriptionResult, error) {
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trials++
	return &backend.SubscriptionResult{Status: "trialing"}, nil
}

func (a *stubAPI) TriggerRegisterEmail(context.Context, backend.RegisterEmailRequest, string) error {
	return nil
}

type memSubscribers struct {
	mu   sync.Mutex
	rows map[string]*user.Subscriber
}

func (m *memSubscribers) Create(_ context.Context, s *user.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[s.Email]; ok {
		return user.ErrDuplicateSubscriber
	}
	m.rows[s.Email] = s
	return nil
}

func (m *memSubscribers) FindByEmail(_ context.Context, email string) (*user.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[email], nil
}

type failingPinger struct{ err error }

func (p failingPinger) PingContext(context.Context) error { return p.err }

type testApp struct {
	router   *gin.Engine
	api      *stubAPI
	visitors *services.VisitorService
	checkout *services.CheckoutService
	cookies  []*http.Cookie
}

func newTestApp(t *testing.T, api *stubAPI) *testApp {
	t.Helper()
	return newTestAppWithTimeout(t, api, 5*time.Second)
}

func newTestAppWithTimeout(t *testing.T, api *stubAPI, checkoutTimeout time.Duration) *testApp {
	t.Helper()
	logger := logging.NewNopLogger()
	perf := performance.NewTracker(nil, logger.Perf())

	visitors := services.NewVisitorService(stores.NewVisitorsStore(100, time.Hour, logger), nil, nil, logger, perf)
	checkoutSvc := services.NewCheckoutService(visitors, api, nil, nil, services.CheckoutConfig{AppURL: "https://app.test"}, logger, perf)
	newsletter := services.NewNewsletterService(&memSubscribers{rows: map[string]*user.Subscriber{}}, visitors, nil, nil,
		services.NewsletterConfig{SiteName: "Lingo", LandingURL: "https://lingo.test", AppURL: "https://app.test"}, logger, perf)

	sessionCfg := middleware.SessionConfig{CookieName: "lingo_session", Secret: "s3cret", TTL: time.Hour}
	visitH := NewVisitHandlers(visitors, nil, false, time.Second, logger, perf)
	checkoutH := NewCheckoutHandlers(checkoutSvc, checkoutTimeout, logger, perf)
	authH := NewAuthHandlers(visitors, sessionCfg, logger, perf)
	newsletterH := NewNewsletterHandlers(newsletter, false, logger)
	configH := NewConfigHandlers(config.Endpoints{LandingURL: "https://lingo.test", AppURL: "https://app.test"}, false)

	r := gin.New()
	api1 := r.Group("/api/v1", middleware.SessionMiddleware(sessionCfg, logger))
	api1.GET("/config/public", configH.GetPublicConfig)
	api1.POST("/visitor/visit", visitH.PostVisit)
	api1.GET("/visitor", visitH.GetProfile)
	api1.PATCH("/visitor", visitH.UpdateProfile)
	api1.POST("/visitor/selection", visitH.PostSelection)
	api1.POST("/auth/token", authH.PostToken)
	api1.POST("/auth/email", authH.PostEmailSignup)
	api1.POST("/checkout/trial", checkoutH.PostTrial)
	api1.GET("/checkout/status", checkoutH.GetStatus)
	api1.POST("/newsletter", newsletterH.PostSubscribe)

	return &testApp{router: r, api: api, visitors: visitors, checkout: checkoutSvc}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range a.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		a.setCookie(c)
	}
	return w
}

func (a *testApp) setCookie(c *http.Cookie) {
	for i, existing := range a.cookies {
		if existing.Name == c.Name {
			a.cookies[i] = c
			return
		}
	}
	a.cookies = append(a.cookies, c)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPostVisitCapturesReferralAndDetectsLanguage(t *testing.T) {
	app := newTestApp(t, &stubAPI{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/visitor/visit",
		strings.NewReader(`{"pageUrl":"https://lingo.test/?utm_source=reddit&ref=spring","referrer":"https://www.google.com/"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	profile := decode(t, w)["profile"].(map[string]any)
	assert.Equal(t, "de", profile["nativeLanguage"])
	assert.Equal(t, "reddit", profile["referralSource"])
	assert.Equal(t, false, profile["hasToken"])

	names := map[string]string{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = c.Value
	}
	assert.Contains(t, names, "lingo_session")
	assert.Equal(t, "spring", names["lingo_ref"])
}

func TestUpdateProfileAppliesFieldsAndRejectsUnsupported(t *testing.T) {
	app := newTestApp(t, &stubAPI{})

	w := app.do(t, http.MethodPatch, "/api/v1/visitor", map[string]any{"targetLanguage": "ES", "targetLevel": "advanced"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	profile := decode(t, w)["profile"].(map[string]any)
	assert.Equal(t, "es", profile["targetLanguage"])
	assert.Equal(t, "advanced", profile["targetLevel"])

	w = app.do(t, http.MethodPatch, "/api/v1/visitor", map[string]any{"nativeLanguage": "it"})
	require.Equal(t, http.StatusOK, w.Code)
	var pref string
	for _, c := range w.Result().Cookies() {
		if c.Name == visitor.PreferenceKey {
			pref = c.Value
		}
	}
	assert.Equal(t, "it", pref)

	w = app.do(t, http.MethodPatch, "/api/v1/visitor", map[string]any{"targetLanguage": "xx"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPatch, "/api/v1/visitor", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/visitor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "es", decode(t, w)["profile"].(map[string]any)["targetLanguage"])
}

func TestPostSelectionMarksLanguageSelected(t *testing.T) {
	app := newTestApp(t, &stubAPI{})

	w := app.do(t, http.MethodPost, "/api/v1/visitor/selection", map[string]any{"language": "fr", "level": "beginner"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, services.CheckoutPath, body["next"])
	profile := body["profile"].(map[string]any)
	assert.Equal(t, "fr", profile["targetLanguage"])
	assert.Equal(t, true, profile["hasSelectedLanguage"])

	w = app.do(t, http.MethodPost, "/api/v1/visitor/selection", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostTrialRedirectsToOnboarding(t *testing.T) {
	api := &stubAPI{}
	app := newTestApp(t, api)

	require.Equal(t, http.StatusOK, app.do(t, http.MethodPatch, "/api/v1/visitor",
		map[string]any{"nativeLanguage": "en", "targetLanguage": "es", "targetLevel": "beginner"}).Code)

	w := app.do(t, http.MethodPost, "/api/v1/checkout/trial", CheckoutRequest{Fragment: "#token=tok-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var outcome checkout.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Equal(t, checkout.StateRedirect, outcome.State)
	assert.Equal(t, checkout.DestinationOnboarding, outcome.Destination)
	assert.Equal(t, "https://app.test/onboarding?token=tok-1", outcome.Location)
	assert.Equal(t, 1, outcome.Attempt)
	assert.Len(t, api.temporal, 1)
	assert.Equal(t, 1, api.trials)
}

func TestPostTrialWithoutTokenIsAFailureOutcome(t *testing.T) {
	api := &stubAPI{}
	app := newTestApp(t, api)

	w := app.do(t, http.MethodPost, "/api/v1/checkout/trial", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var outcome checkout.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Equal(t, checkout.StateError, outcome.State)
	assert.Zero(t, api.trials)
}

func TestPostTrialWhileInFlightConflicts(t *testing.T) {
	api := &stubAPI{block: make(chan struct{}), started: make(chan struct{}, 1)}
	app := newTestApp(t, api)

	require.Equal(t, http.StatusOK, app.do(t, http.MethodPatch, "/api/v1/visitor",
		map[string]any{"nativeLanguage": "en", "targetLanguage": "es", "targetLevel": "beginner"}).Code)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- app.do(t, http.MethodPost, "/api/v1/checkout/trial", CheckoutRequest{Fragment: "token=tok-2"})
	}()
	<-api.started

	w := app.do(t, http.MethodGet, "/api/v1/checkout/status", nil)
	assert.Equal(t, string(checkout.StateProcessing), decode(t, w)["state"])

	w = app.do(t, http.MethodPost, "/api/v1/checkout/trial", CheckoutRequest{Fragment: "token=tok-2"})
	assert.Equal(t, http.StatusConflict, w.Code)

	close(api.block)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)

	w = app.do(t, http.MethodGet, "/api/v1/checkout/status", nil)
	assert.Equal(t, string(checkout.StateIdle), decode(t, w)["state"])
}

func TestPostTrialTimeoutOffersRetry(t *testing.T) {
	api := &stubAPI{block: make(chan struct{})}
	app := newTestAppWithTimeout(t, api, 20*time.Millisecond)

	require.Equal(t, http.StatusOK, app.do(t, http.MethodPatch, "/api/v1/visitor",
		map[string]any{"nativeLanguage": "en", "targetLanguage": "es", "targetLevel": "beginner"}).Code)

	var notified []*checkout.Outcome
	var mu sync.Mutex
	app.checkout.OnOutcome(func(_ string, o *checkout.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, o)
	})

	w := app.do(t, http.MethodPost, "/api/v1/checkout/trial", CheckoutRequest{Fragment: "#token=tok-3"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var outcome checkout.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Equal(t, checkout.StateError, outcome.State)
	assert.Equal(t, checkout.TimeoutMessage, outcome.Message)
	assert.Equal(t, []checkout.Action{checkout.ActionRetry, checkout.ActionGoBack}, outcome.Actions)
	assert.Zero(t, api.trials)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notified, 1)
	assert.Equal(t, checkout.StateError, notified[0].State)
}

func TestPostTokenRejectsBlankToken(t *testing.T) {
	app := newTestApp(t, &stubAPI{})

	w := app.do(t, http.MethodPost, "/api/v1/auth/token", TokenRequest{Token: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/auth/email", EmailSignupRequest{Email: "ana@example.com", Token: "\t"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/auth/token", TokenRequest{Token: "tok-9"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["profile"].(map[string]any)["hasToken"])
}

func TestNewsletterSubscribeIsIdempotent(t *testing.T) {
	app := newTestApp(t, &stubAPI{})

	w := app.do(t, http.MethodPost, "/api/v1/newsletter", NewsletterRequest{Email: "Reader@Example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/newsletter", NewsletterRequest{Email: "reader@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["alreadySubscribed"])

	w = app.do(t, http.MethodPost, "/api/v1/newsletter", NewsletterRequest{Email: "not-an-address"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicConfigDecoratesSignupURL(t *testing.T) {
	app := newTestApp(t, &stubAPI{})
	app.cookies = append(app.cookies, &http.Cookie{Name: "lingo_ref", Value: "friend"})

	w := app.do(t, http.MethodGet, "/api/v1/config/public", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "https://app.test/signup?ref=friend", body["signupUrl"])
	assert.Len(t, body["languages"], 14)
}

func TestHealthAndReadiness(t *testing.T) {
	logger := logging.NewNopLogger()
	perf := performance.NewTracker(nil, logger.Perf())

	r := gin.New()
	healthy := NewHealthHandlers(nil, nil, logger, perf)
	broken := NewHealthHandlers(failingPinger{err: errors.New("down")}, nil, logger, perf)
	r.GET("/health", healthy.GetHealth)
	r.GET("/ready", healthy.GetReady)
	r.GET("/ready-broken", broken.GetReady)
	r.GET("/stats/referrals", healthy.GetReferralStats)

	for path, want := range map[string]int{
		"/health":          http.StatusOK,
		"/ready":           http.StatusOK,
		"/ready-broken":    http.StatusServiceUnavailable,
		"/stats/referrals": http.StatusServiceUnavailable,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

func TestRequireSessionWithoutMiddleware(t *testing.T) {
	logger := logging.NewNopLogger()
	perf := performance.NewTracker(nil, logger.Perf())
	visitors := services.NewVisitorService(stores.NewVisitorsStore(10, time.Hour, logger), nil, nil, logger, perf)

	r := gin.New()
	r.GET("/visitor", NewVisitHandlers(visitors, nil, false, 0, logger, perf).GetProfile)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visitor", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
