package marker

import (
	"fmt"
	"sync"
	"time"
)

// Sink receives marker collections.
type Sink interface {
	PublishMarkers(topic string, a Array) error
}

// State is the marker collection owned by the viewer. Values are treated as
// immutable; Refresh returns a new State.
type State struct {
	markers []Marker
}

// NewState wraps the markers built at startup.
func NewState(markers ...Marker) State {
	return State{markers: append([]Marker(nil), markers...)}
}

// Refresh returns s with every marker restamped. No other field changes.
func Refresh(s State, stamp time.Time) State {
	next := make([]Marker, len(s.markers))
	copy(next, s.markers)
	for i := range next {
		next[i].Stamp = stamp
	}
	return State{markers: next}
}

// Array returns a copy of the collection for publishing.
func (s State) Array() Array {
	return Array{Markers: append([]Marker(nil), s.markers...)}
}

// Len returns the number of markers.
func (s State) Len() int {
	return len(s.markers)
}

// Synthesizer holds the current marker state and republishes it on refresh.
type Synthesizer struct {
	sink  Sink
	topic string

	mu    sync.Mutex
	state State
}

// NewSynthesizer creates a Synthesizer publishing initial to sink on Topic.
func NewSynthesizer(initial State, sink Sink) *Synthesizer {
	return &Synthesizer{sink: sink, topic: Topic, state: initial}
}

// Refresh restamps the collection with stamp and republishes all of it.
func (s *Synthesizer) Refresh(stamp time.Time) error {
	s.mu.Lock()
	s.state = Refresh(s.state, stamp)
	a := s.state.Array()
	s.mu.Unlock()

	if err := s.sink.PublishMarkers(s.topic, a); err != nil {
		return fmt.Errorf("publish %s: %w", s.topic, err)
	}
	return nil
}

// State returns the current marker state.
func (s *Synthesizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
