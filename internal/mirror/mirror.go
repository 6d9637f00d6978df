package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/driver-hiring/internal/observability"
)

// State is the partial driver document written to realtime stores.
type State struct {
	Available bool     `json:"available"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	UpdatedAt int64    `json:"updatedAt"` // unix milliseconds
}

// Event pairs a State with the driver it belongs to.
type Event struct {
	DriverID int64 `json:"driver_id"`
	State    State `json:"state"`
}

// Mirror pushes driver state to a realtime store.
type Mirror interface {
	Update(ctx context.Context, driverID int64, s State) error
}

// Error reports a failed write to one sink.
type Error struct {
	Sink string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("mirror %s: %v", e.Sink, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Sink is a named Mirror.
type Sink struct {
	Name   string
	Mirror Mirror
}

// Fanout writes to every sink in order. All sinks are attempted; failures
// are joined into one error.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout { return &Fanout{sinks: sinks} }

func (f *Fanout) Add(name string, m Mirror) { f.sinks = append(f.sinks, Sink{Name: name, Mirror: m}) }

// Names lists the configured sinks.
func (f *Fanout) Names() []string {
	out := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		out = append(out, s.Name)
	}
	return out
}

func (f *Fanout) Update(ctx context.Context, driverID int64, s State) error {
	var errs []error
	for _, sink := range f.sinks {
		err := sink.Mirror.Update(ctx, driverID, s)
		observability.MirrorWrites.WithLabelValues(sink.Name, observability.Result(err)).Inc()
		if err != nil {
			errs = append(errs, &Error{Sink: sink.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Nop discards updates.
type Nop struct{}

func (Nop) Update(context.Context, int64, State) error { return nil }
