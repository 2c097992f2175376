package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/crack2116/fleettrack/pkg/storeerr"
)

const fetchTimeout = time.Second * 10

type fetchFunc func(ctx context.Context, q Query) ([]*Record, error)

type subscription struct {
	mx         sync.Mutex
	name       string
	q          Query
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	closed     atomic.Bool
}

// registry keeps live subscriptions and re-evaluates them on collection changes.
// Deliveries to one subscription are serialized. Callbacks must not write to the
// collection they are subscribed to, nor unsubscribe themselves.
type registry struct {
	mx     sync.RWMutex
	subs   map[string]*subscription
	fetch  fetchFunc
	logger *slog.Logger
}

func newRegistry(logger *slog.Logger, fetch fetchFunc) *registry {
	return &registry{
		subs:   make(map[string]*subscription),
		fetch:  fetch,
		logger: logger,
	}
}

func (r *registry) subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	s := &subscription{
		name:       uuid.NewString(),
		q:          q,
		onSnapshot: onSnapshot,
		onError:    onError,
	}

	if err := q.Validate(); err != nil {
		r.fail(s, err)
		return func() {}
	}

	r.mx.Lock()
	r.subs[s.name] = s
	r.mx.Unlock()

	activeSubscriptions.WithLabelValues(q.Collection).Inc()
	r.logger.Debug("subscribed", slog.String("collection", q.Collection), slog.String("name", s.name))

	r.refresh(s)

	return func() {
		if !s.closed.CompareAndSwap(false, true) {
			return
		}

		// waits for a delivery in flight
		s.mx.Lock()
		r.mx.Lock()
		delete(r.subs, s.name)
		r.mx.Unlock()
		s.mx.Unlock()

		activeSubscriptions.WithLabelValues(q.Collection).Dec()
		r.logger.Debug("unsubscribed", slog.String("collection", q.Collection), slog.String("name", s.name))
	}
}

func (r *registry) notify(collection string) {
	r.mx.RLock()
	subs := make([]*subscription, 0, len(r.subs))

	for _, s := range r.subs {
		if s.q.Collection == collection {
			subs = append(subs, s)
		}
	}
	r.mx.RUnlock()

	for _, s := range subs {
		r.refresh(s)
	}
}

func (r *registry) refresh(s *subscription) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	recs, err := r.fetch(ctx, s.q)

	if s.closed.Load() {
		return
	}

	if err != nil {
		r.fail(s, err)
		return
	}

	snapshotsMetric.WithLabelValues(s.q.Collection).Inc()
	s.onSnapshot(recs)
}

func (r *registry) fail(s *subscription, err error) {
	code := storeerr.Classify(err)
	errorsMetric.WithLabelValues("subscribe", string(code)).Inc()
	r.logger.Error("subscription error", slog.String("collection", s.q.Collection), slog.String("code", string(code)), slog.Any("error", err))

	s.onSnapshot(nil)

	if s.onError != nil {
		s.onError(err)
	}
}

func (r *registry) len() int {
	r.mx.RLock()
	defer r.mx.RUnlock()

	return len(r.subs)
}
