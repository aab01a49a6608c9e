package services

import (
	"context"
	"sync"
	"time"

	"github.com/lingoreader/landing-go/internal/domain/analytics"
	"github.com/lingoreader/landing-go/internal/domain/events"
	"github.com/lingoreader/landing-go/internal/domain/user"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/infrastructure/backend"
	"github.com/lingoreader/landing-go/internal/infrastructure/email"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/logging"
	"github.com/lingoreader/landing-go/internal/infrastructure/observability/performance"
)

type memStore struct {
	mu       sync.Mutex
	profiles map[string]*visitor.Profile
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[string]*visitor.Profile)}
}

func (m *memStore) Get(_ context.Context, sessionID string) (*visitor.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[sessionID]
	if !ok {
		return nil, visitor.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memStore) Save(_ context.Context, profile *visitor.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.SessionID] = profile.Clone()
	return nil
}

func (m *memStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, sessionID)
	return nil
}

type mapStorage map[string]string

func (m mapStorage) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapStorage) Set(key, value string, _ time.Duration) { m[key] = value }

type apiCall struct {
	Method  string
	Token   string
	Payload any
}

type fakeAPI struct {
	mu          sync.Mutex
	calls       []apiCall
	temporalErr error
	trialErr    error
	registerErr error
	demoResult  *backend.DemoSignupResult
	demoErr     error
	trialHook   func(ctx context.Context)
	trialResult *backend.SubscriptionResult
}

func (f *fakeAPI) record(method, token string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiCall{Method: method, Token: token, Payload: payload})
}

func (f *fakeAPI) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func (f *fakeAPI) methods() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeAPI) DemoSignup(_ context.Context, req backend.DemoSignupRequest) (*backend.DemoSignupResult, error) {
	f.record("DemoSignup", "", req)
	if f.demoErr != nil {
		return nil, f.demoErr
	}
	return f.demoResult, nil
}

func (f *fakeAPI) CreateTemporalProfile(_ context.Context, profile backend.TemporalProfile, token string) error {
	f.record("CreateTemporalProfile", token, profile)
	return f.temporalErr
}

func (f *fakeAPI) CreateTrialSubscription(ctx context.Context, token string) (*backend.SubscriptionResult, error) {
	f.record("CreateTrialSubscription", token, nil)
	if f.trialHook != nil {
		f.trialHook(ctx)
	}
	if f.trialErr != nil {
		return nil, f.trialErr
	}
	if f.trialResult != nil {
		return f.trialResult, nil
	}
	return &backend.SubscriptionResult{ID: "sub_1", Status: "trialing"}, nil
}

func (f *fakeAPI) TriggerRegisterEmail(_ context.Context, req backend.RegisterEmailRequest, token string) error {
	f.record("TriggerRegisterEmail", token, req)
	return f.registerErr
}

type sinkEvent struct {
	Name  analytics.EventName
	Props analytics.Properties
}

type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (r *recordingSink) Emit(name analytics.EventName, props analytics.Properties) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sinkEvent{Name: name, Props: props})
}

func (r *recordingSink) names() []analytics.EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []analytics.EventName
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

type fakeVisits struct {
	mu     sync.Mutex
	visits []*user.Visit
	err    error
}

func (f *fakeVisits) Create(_ context.Context, v *user.Visit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.visits = append(f.visits, v)
	return nil
}

func (f *fakeVisits) FindBySessionID(_ context.Context, sessionID string) ([]*user.Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*user.Visit
	for _, v := range f.visits {
		if v.SessionID == sessionID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVisits) CountBySource(context.Context, time.Time) ([]user.SourceCount, error) {
	return nil, nil
}

type fakeAttempts struct {
	mu       sync.Mutex
	attempts []*user.CheckoutAttempt
}

func (f *fakeAttempts) Create(_ context.Context, a *user.CheckoutAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, a)
	return nil
}

func (f *fakeAttempts) FindBySessionID(_ context.Context, sessionID string) ([]*user.CheckoutAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*user.CheckoutAttempt
	for _, a := range f.attempts {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSubscribers struct {
	mu   sync.Mutex
	subs map[string]*user.Subscriber
}

func (f *fakeSubscribers) Create(_ context.Context, s *user.Subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[string]*user.Subscriber)
	}
	if _, ok := f.subs[s.Email]; ok {
		return user.ErrDuplicateSubscriber
	}
	f.subs[s.Email] = s
	return nil
}

func (f *fakeSubscribers) FindByEmail(_ context.Context, addr string) (*user.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[addr], nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.WelcomeEmail
	err  error
}

func (f *fakeMailer) SendNewsletterWelcome(msg email.WelcomeEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeBroadcaster) AddClientWithSession(string) (chan string, error) { return make(chan string), nil }
func (f *fakeBroadcaster) RemoveClientWithSession(chan string, string)      {}
func (f *fakeBroadcaster) GetSessionConnectionCount(string) int             { return 0 }

func (f *fakeBroadcaster) BroadcastToSession(e events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeBroadcaster) Events() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

func newTestVisitorService(sink analytics.Sink) (*VisitorService, *memStore) {
	store := newMemStore()
	return NewVisitorService(store, nil, sink, logging.NewNopLogger(), performance.NewTracker(nil, nil)), store
}
