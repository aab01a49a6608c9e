// Package widget implements the language and level selection state machine.
package widget

import (
	"errors"
	"sync"
	"time"

	"github.com/lingoreader/landing-go/internal/domain/visitor"
)

// State is the selector's visible state.
type State string

const (
	StateClosed     State = "closed"
	StateOpen       State = "open"
	StateProcessing State = "processing"
	StateConfirmed  State = "confirmed"
)

const (
	DefaultProcessingDuration   = 1200 * time.Millisecond
	DefaultConfirmationDuration = 1500 * time.Millisecond
)

var (
	// ErrSelectionLocked is returned for interactions the current state does not accept.
	ErrSelectionLocked = errors.New("language selection is locked")
	// ErrStopped is returned once the selector has been stopped.
	ErrStopped = errors.New("language selector stopped")
)

// Selection is one language pick.
type Selection struct {
	NativeLanguage visitor.LanguageCode     `json:"nativeLanguage,omitempty"`
	Language       visitor.LanguageCode     `json:"language"`
	Level          visitor.ProficiencyLevel `json:"level,omitempty"`
}

// Config lists every recognised selector option.
type Config struct {
	ProcessingDuration   time.Duration
	ConfirmationDuration time.Duration

	// OnLanguageSelect fires synchronously inside Pick. A non-nil error aborts
	// the pick and reopens the selector.
	OnLanguageSelect func(Selection) error
	// OnProcessingComplete fires once the processing and confirmation windows elapse.
	OnProcessingComplete func(Selection)
	// OnStateChange observes every visible transition.
	OnStateChange func(State)
}

// Selector is safe for concurrent use. Callbacks run without the lock held.
type Selector struct {
	mu         sync.Mutex
	cfg        Config
	state      State
	inFlight   bool
	stopped    bool
	generation uint64
	pending    Selection
	timer      *time.Timer
}

// NewSelector creates a closed selector; zero durations take the defaults.
func NewSelector(cfg Config) *Selector {
	if cfg.ProcessingDuration <= 0 {
		cfg.ProcessingDuration = DefaultProcessingDuration
	}
	if cfg.ConfirmationDuration <= 0 {
		cfg.ConfirmationDuration = DefaultConfirmationDuration
	}
	return &Selector{cfg: cfg, state: StateClosed}
}

// State returns the current visible state.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight reports whether a pick is waiting for its completion callback.
func (s *Selector) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Open shows the language list.
func (s *Selector) Open() error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrStopped
	case s.state == StateOpen:
		s.mu.Unlock()
		return nil
	case s.inFlight:
		s.mu.Unlock()
		return ErrSelectionLocked
	}
	s.state = StateOpen
	s.mu.Unlock()

	s.notify(StateOpen)
	return nil
}

// Pick starts processing sel. Only an open selector accepts a pick.
func (s *Selector) Pick(sel Selection) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.state != StateOpen {
		s.mu.Unlock()
		return ErrSelectionLocked
	}
	s.state = StateProcessing
	s.inFlight = true
	s.pending = sel
	s.generation++
	gen := s.generation
	s.timer = time.AfterFunc(s.cfg.ProcessingDuration, func() { s.confirm(gen) })
	s.mu.Unlock()

	s.notify(StateProcessing)
	if s.cfg.OnLanguageSelect != nil {
		if err := s.cfg.OnLanguageSelect(sel); err != nil {
			s.abort(gen)
			return err
		}
	}
	return nil
}

// abort returns a rejected pick to open unless a reset or stop got there first.
func (s *Selector) abort(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.stopped {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.inFlight = false
	s.pending = Selection{}
	s.state = StateOpen
	s.mu.Unlock()

	s.notify(StateOpen)
}

func (s *Selector) confirm(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateProcessing {
		s.mu.Unlock()
		return
	}
	s.state = StateConfirmed
	s.timer = time.AfterFunc(s.cfg.ConfirmationDuration, func() { s.complete(gen) })
	s.mu.Unlock()

	s.notify(StateConfirmed)
}

func (s *Selector) complete(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.inFlight {
		s.mu.Unlock()
		return
	}
	sel := s.pending
	wasVisible := s.state != StateClosed
	s.state = StateClosed
	s.inFlight = false
	s.pending = Selection{}
	s.timer = nil
	s.mu.Unlock()

	if s.cfg.OnProcessingComplete != nil {
		s.cfg.OnProcessingComplete(sel)
	}
	if wasVisible {
		s.notify(StateClosed)
	}
}

// Dismiss closes the selector from any state except processing. A confirmed
// selection still completes after its confirmation window.
func (s *Selector) Dismiss() error {
	s.mu.Lock()
	switch s.state {
	case StateProcessing:
		s.mu.Unlock()
		return ErrSelectionLocked
	case StateClosed:
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.notify(StateClosed)
	return nil
}

// ResetStates force-closes the selector and abandons any in-flight pick.
func (s *Selector) ResetStates() {
	s.mu.Lock()
	changed := s.reset()
	s.mu.Unlock()

	if changed {
		s.notify(StateClosed)
	}
}

// Stop resets the selector and rejects further interaction.
func (s *Selector) Stop() {
	s.mu.Lock()
	s.reset()
	s.stopped = true
	s.mu.Unlock()
}

func (s *Selector) reset() bool {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.inFlight = false
	s.pending = Selection{}
	changed := s.state != StateClosed
	s.state = StateClosed
	return changed
}

func (s *Selector) notify(state State) {
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(state)
	}
}
