// Package audit describes reporting cycles to interested observers.
package audit

import "github.com/vshulcz/influxreporter/pkg/observer"

// Event summarises one reporting cycle.
type Event struct {
	Timestamp    int64  `json:"ts"`
	Version      string `json:"version"`
	Trigger      string `json:"trigger,omitempty"`
	Measurements int    `json:"measurements"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
	DurationMs   int64  `json:"duration_ms"`
	Err          string `json:"error,omitempty"`
}

// OK reports whether the cycle finished without error.
func (e Event) OK() bool { return e.Err == "" }

type (
	Observer     = observer.Observer[Event]
	ObserverFunc = observer.ObserverFunc[Event]
	Publisher    = observer.Publisher[Event]

	// Subject hands observer failures to its error handler as
	// *observer.NotifyError.
	Subject = observer.Subject[Event]
)

func NewSubject(observers ...Observer) *Subject {
	return observer.NewSubject(observers...)
}
