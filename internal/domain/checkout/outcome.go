// Package checkout holds the outcome model of a trial checkout attempt and the
// classification of backend failures.
package checkout

import (
	"errors"
	"strings"
)

// State is the orchestrator state an outcome ends in.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateRedirect   State = "success-redirect"
	StateError      State = "error"
	StateCancelled  State = "cancelled"
)

// Navigation tells the client how to follow Location.
type Navigation string

const (
	// NavigationExternal is a full page navigation.
	NavigationExternal Navigation = "external"
	// NavigationInternal is an in-app route change.
	NavigationInternal Navigation = "internal"
)

// Action is a recovery affordance offered with an error outcome.
type Action string

const (
	ActionRetry  Action = "retry"
	ActionGoBack Action = "back"
)

// Destination labels which branch a redirect took.
type Destination string

const (
	DestinationGoogleBridge Destination = "google-bridge"
	DestinationVerification Destination = "verification"
	DestinationOnboarding   Destination = "onboarding"
	DestinationLogin        Destination = "login"
)

// VerificationPath is the in-app route shown while an email is being verified.
const VerificationPath = "/verification"

// HomePath is where Go-Back leads.
const HomePath = "/"

// GenericErrorMessage is shown when a failure carries no message.
const GenericErrorMessage = "Something went wrong while starting your trial. Please try again."

// Outcome is the terminal result of a checkout run.
type Outcome struct {
	State       State       `json:"state"`
	Navigation  Navigation  `json:"navigation,omitempty"`
	Location    string      `json:"location,omitempty"`
	Destination Destination `json:"destination,omitempty"`
	Message     string      `json:"message,omitempty"`
	Actions     []Action    `json:"actions,omitempty"`
	Attempt     int         `json:"attempt"`
}

// Redirect builds a success outcome.
func Redirect(nav Navigation, destination Destination, location string) *Outcome {
	return &Outcome{
		State:       StateRedirect,
		Navigation:  nav,
		Location:    location,
		Destination: destination,
	}
}

// Failure builds a recoverable error outcome.
func Failure(message string, actions ...Action) *Outcome {
	if strings.TrimSpace(message) == "" {
		message = GenericErrorMessage
	}
	if len(actions) == 0 {
		actions = []Action{ActionRetry, ActionGoBack}
	}
	return &Outcome{
		State:   StateError,
		Message: message,
		Actions: actions,
	}
}

// TimeoutMessage is shown when a run outlives its deadline.
const TimeoutMessage = "The request took too long. Please try again."

// TimedOut is the failure for a run that outlived its deadline.
func TimedOut() *Outcome {
	return Failure(TimeoutMessage, ActionRetry, ActionGoBack)
}

// Cancelled marks a run whose caller went away before it finished.
func Cancelled() *Outcome {
	return &Outcome{State: StateCancelled}
}

var alreadyRegisteredMarkers = []string{
	"already exists",
	"already has",
	"already registered",
	"already used",
}

// IsAlreadyRegisteredError reports whether err signals an existing trial or account.
func IsAlreadyRegisteredError(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) && coded.ErrorCode() == "already_registered" {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range alreadyRegisteredMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
