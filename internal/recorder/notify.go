package recorder

import "fmt"

// Notification tags and kinds. Every notification is a (tag, kind, value) triple.
const (
	TagFile = "file"

	KindOpen     = "open"     // Value: resolved file path (string)
	KindSamples  = "samples"  // Value: samples written during the take (uint64)
	KindBytes    = "bytes"    // Value: bytes written during the take (uint64)
	KindOverruns = "overruns" // Value: blocks refused during the take (uint64)
	KindError    = "error"    // Value: error message (string)
)

// Notification is an event emitted by a Session.
type Notification struct {
	Tag   string
	Kind  string
	Value any
}

// String formats the notification as a space separated list.
func (n Notification) String() string {
	return fmt.Sprintf("%s %s %v", n.Tag, n.Kind, n.Value)
}

// Notifier receives session notifications. Notify is called from the
// session's writer goroutine and should return quickly.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}
