package checkout

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type codedError struct{ code string }

func (e codedError) Error() string     { return "conflict" }
func (e codedError) ErrorCode() string { return e.code }

func TestIsAlreadyRegisteredError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"exists", errors.New("Subscription Already Exists for user"), true},
		{"has", errors.New("user already has a trial"), true},
		{"registered", errors.New("Email ALREADY REGISTERED"), true},
		{"used", errors.New("trial already used"), true},
		{"wrapped", fmt.Errorf("create trial: %w", errors.New("already exists")), true},
		{"structured code", codedError{code: "already_registered"}, true},
		{"other code", codedError{code: "payment_required"}, false},
		{"generic", errors.New("HTTP error! status: 500"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAlreadyRegisteredError(tt.err))
		})
	}
}

func TestFailureDefaults(t *testing.T) {
	o := Failure("  ")
	assert.Equal(t, StateError, o.State)
	assert.Equal(t, GenericErrorMessage, o.Message)
	assert.Equal(t, []Action{ActionRetry, ActionGoBack}, o.Actions)

	back := Failure("no token", ActionGoBack)
	assert.Equal(t, []Action{ActionGoBack}, back.Actions)
}

func TestRedirect(t *testing.T) {
	o := Redirect(NavigationInternal, DestinationVerification, VerificationPath)
	assert.Equal(t, StateRedirect, o.State)
	assert.Equal(t, "/verification", o.Location)
}
