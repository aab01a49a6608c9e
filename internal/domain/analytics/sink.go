// Package analytics defines the fire-and-forget event emission contract used by
// every part of the landing flow.
package analytics

// EventName names a discrete analytics event.
type EventName string

const (
	EventLead           EventName = "Lead"
	EventViewContent    EventName = "ViewContent"
	EventSelectLanguage EventName = "SelectLanguage"
	EventStartTrial     EventName = "StartTrial"
	EventCheckoutFailed EventName = "CheckoutFailed"
	EventSubscribe      EventName = "Subscribe"
	EventDemoSignup     EventName = "DemoSignup"
)

// Properties is the free-form property bag attached to an event.
type Properties map[string]any

// Sink receives events. Implementations must not block the caller for long,
// must not return errors and must never panic into the caller.
type Sink interface {
	Emit(name EventName, props Properties)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name EventName, props Properties)

func (f SinkFunc) Emit(name EventName, props Properties) { f(name, props) }

// Nop discards every event.
var Nop Sink = SinkFunc(func(EventName, Properties) {})
