package store

import (
	"github.com/crack2116/fleettrack/pkg/storeerr"
)

// Identity tells who is signed in; empty means nobody.
type Identity interface {
	CurrentUser() string
}

type guarded struct {
	src Source
	id  Identity
}

// Guard refuses subscriptions while nobody is signed in: the subscriber gets
// an empty snapshot and an unauthenticated error.
func Guard(src Source, id Identity) Source {
	return &guarded{src: src, id: id}
}

func (g *guarded) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	if g.id == nil || g.id.CurrentUser() == "" {
		errorsMetric.WithLabelValues("subscribe", string(storeerr.Unauthenticated)).Inc()
		onSnapshot(nil)

		if onError != nil {
			onError(storeerr.Errorf(storeerr.Unauthenticated, "subscribe", "no signed in user for %s", q.Collection))
		}

		return func() {}
	}

	return g.src.Subscribe(q, onSnapshot, onError)
}
