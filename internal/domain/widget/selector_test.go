package widget

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu        sync.Mutex
	selected  []time.Time
	completed []Selection
	states    []State
	done      chan time.Time
}

func newRecorder() *recorder {
	return &recorder{done: make(chan time.Time, 4)}
}

func (r *recorder) config(processing, confirmation time.Duration) Config {
	return Config{
		ProcessingDuration:   processing,
		ConfirmationDuration: confirmation,
		OnLanguageSelect: func(Selection) error {
			r.mu.Lock()
			r.selected = append(r.selected, time.Now())
			r.mu.Unlock()
			return nil
		},
		OnProcessingComplete: func(sel Selection) {
			r.mu.Lock()
			r.completed = append(r.completed, sel)
			r.mu.Unlock()
			r.done <- time.Now()
		},
		OnStateChange: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() ([]time.Time, []Selection, []State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.selected...), append([]Selection(nil), r.completed...), append([]State(nil), r.states...)
}

func TestDefaults(t *testing.T) {
	s := NewSelector(Config{})
	assert.Equal(t, DefaultProcessingDuration, s.cfg.ProcessingDuration)
	assert.Equal(t, DefaultConfirmationDuration, s.cfg.ConfirmationDuration)
	assert.Equal(t, StateClosed, s.State())
}

func TestTimingContract(t *testing.T) {
	const processing, confirmation = 120 * time.Millisecond, 150 * time.Millisecond
	rec := newRecorder()
	s := NewSelector(rec.config(processing, confirmation))

	require.NoError(t, s.Open())
	start := time.Now()
	require.NoError(t, s.Pick(Selection{Language: "es", Level: "beginner"}))

	selected, completed, _ := rec.snapshot()
	require.Len(t, selected, 1, "OnLanguageSelect fires inside Pick")
	assert.Empty(t, completed)
	assert.Equal(t, StateProcessing, s.State())

	select {
	case at := <-rec.done:
		assert.GreaterOrEqual(t, at.Sub(start), processing+confirmation)
	case <-time.After(5 * time.Second):
		t.Fatal("processing never completed")
	}

	_, completed, states := rec.snapshot()
	require.Len(t, completed, 1)
	assert.Equal(t, "es", string(completed[0].Language))
	assert.Equal(t, []State{StateOpen, StateProcessing, StateConfirmed, StateClosed}, states)
	assert.Equal(t, StateClosed, s.State())
	assert.False(t, s.InFlight())
}

func TestPickOutsideOpenIsLocked(t *testing.T) {
	rec := newRecorder()
	s := NewSelector(rec.config(50*time.Millisecond, 10*time.Millisecond))

	assert.ErrorIs(t, s.Pick(Selection{Language: "fr"}), ErrSelectionLocked)

	require.NoError(t, s.Open())
	require.NoError(t, s.Pick(Selection{Language: "fr"}))
	assert.ErrorIs(t, s.Pick(Selection{Language: "de"}), ErrSelectionLocked)
	assert.ErrorIs(t, s.Open(), ErrSelectionLocked)
	assert.ErrorIs(t, s.Dismiss(), ErrSelectionLocked)

	<-rec.done
	selected, completed, _ := rec.snapshot()
	assert.Len(t, selected, 1)
	require.Len(t, completed, 1)
	assert.Equal(t, "fr", string(completed[0].Language))
}

func TestDismissFromOpen(t *testing.T) {
	rec := newRecorder()
	s := NewSelector(rec.config(10*time.Millisecond, 10*time.Millisecond))

	require.NoError(t, s.Open())
	require.NoError(t, s.Open())
	require.NoError(t, s.Dismiss())
	require.NoError(t, s.Dismiss())
	assert.Equal(t, StateClosed, s.State())

	_, _, states := rec.snapshot()
	assert.Equal(t, []State{StateOpen, StateClosed}, states)
}

func TestDismissDuringConfirmationStillCompletes(t *testing.T) {
	rec := newRecorder()
	s := NewSelector(rec.config(10*time.Millisecond, 200*time.Millisecond))

	require.NoError(t, s.Open())
	require.NoError(t, s.Pick(Selection{Language: "it"}))
	require.Eventually(t, func() bool { return s.State() == StateConfirmed }, time.Second, 2*time.Millisecond)

	require.NoError(t, s.Dismiss())
	assert.Equal(t, StateClosed, s.State())
	assert.True(t, s.InFlight())

	<-rec.done
	_, completed, states := rec.snapshot()
	assert.Len(t, completed, 1)
	assert.Equal(t, StateClosed, states[len(states)-1])
	assert.Equal(t, []State{StateOpen, StateProcessing, StateConfirmed, StateClosed}, states)
}

func TestResetStatesAbandonsInFlightPick(t *testing.T) {
	rec := newRecorder()
	s := NewSelector(rec.config(30*time.Millisecond, 30*time.Millisecond))

	require.NoError(t, s.Open())
	require.NoError(t, s.Pick(Selection{Language: "ja"}))
	s.ResetStates()
	assert.Equal(t, StateClosed, s.State())

	select {
	case <-rec.done:
		t.Fatal("completion fired after reset")
	case <-time.After(150 * time.Millisecond):
	}

	require.NoError(t, s.Open(), "selector is usable after reset")
	s.ResetStates()
}

func TestStopRejectsInteraction(t *testing.T) {
	s := NewSelector(Config{ProcessingDuration: time.Hour})
	require.NoError(t, s.Open())
	require.NoError(t, s.Pick(Selection{Language: "ko"}))
	s.Stop()

	assert.ErrorIs(t, s.Open(), ErrStopped)
	assert.ErrorIs(t, s.Pick(Selection{Language: "ko"}), ErrStopped)
	assert.Equal(t, StateClosed, s.State())
}

func TestRejectedPickReopensWithoutCompleting(t *testing.T) {
	r := newRecorder()
	cfg := r.config(10*time.Millisecond, 10*time.Millisecond)
	rejected := errors.New("unsupported language")
	cfg.OnLanguageSelect = func(sel Selection) error {
		if sel.Language == "tlh" {
			return rejected
		}
		return nil
	}
	s := NewSelector(cfg)
	defer s.Stop()

	require.NoError(t, s.Open())
	assert.ErrorIs(t, s.Pick(Selection{Language: "tlh"}), rejected)
	assert.Equal(t, StateOpen, s.State())
	assert.False(t, s.InFlight())

	time.Sleep(50 * time.Millisecond)
	_, completed, states := r.snapshot()
	assert.Empty(t, completed)
	assert.Equal(t, []State{StateOpen, StateProcessing, StateOpen}, states)

	require.NoError(t, s.Pick(Selection{Language: "es"}), "a rejected pick leaves the selector open for another try")
}
