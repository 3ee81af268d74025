package app

import (
	"github.com/kanti-proxy/kanti/internal/capture"
	"github.com/kanti-proxy/kanti/internal/eventbus"
	"github.com/kanti-proxy/kanti/internal/store"
)

// combinedSink fans a completed capture.RequestDetails out to both the
// bounded capture store and the batched event bus, satisfying capture.Sink
// for the pipeline as a capability-set composition rather than a virtual
// dispatch hierarchy.
type combinedSink struct {
	store *store.Store
	bus   *eventbus.Bus
}

func (s *combinedSink) OnRequestEmitted(r capture.RequestDetails) {
	s.store.Append(r)
	s.bus.OnRequestEmitted(r)
}

func (s *combinedSink) OnResponseEmitted(r capture.RequestDetails) {
	s.store.UpdateByID(r.ID, r)
	s.bus.OnResponseEmitted(r)
}
