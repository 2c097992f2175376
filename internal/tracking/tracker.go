package tracking

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/crack2116/fleettrack/internal/callbacks"
	"github.com/crack2116/fleettrack/internal/store"
	"github.com/crack2116/fleettrack/pkg/model"
	"github.com/crack2116/fleettrack/pkg/util"
)

type Config struct {
	Layout Layout
	// Capacity is the number of vehicles that can move at the same time.
	Capacity int
	Interval time.Duration
	// Step is the fraction of the remaining way covered every interval.
	Step float64
	// Jitter is the max random offset added to a moving vehicle, coordinate units.
	Jitter        float64
	ArrivalMeters float64
}

func DefaultConfig() Config {
	return Config{
		Layout:        DefaultLayout(),
		Capacity:      1,
		Interval:      time.Second * 2,
		Step:          0.1,
		Jitter:        0,
		ArrivalMeters: 50,
	}
}

const (
	EventRouteAssigned = "route_assigned"
	EventArrived       = "arrived"
)

type Event struct {
	Type     string
	Vehicle  *model.Vehicle
	Movement *Movement
}

// Tracker keeps the live vehicle snapshot of one session.
// Listeners are called with the tracker locked and must not call back into it.
type Tracker struct {
	mx       sync.RWMutex
	logger   *slog.Logger
	src      store.Source
	cfg      Config
	status   *StatusTracker
	vehicles []*model.Vehicle
	loading  bool
	err      error
	unsub    func()
	started  bool
	closed   bool
	stop     chan struct{}
	jitter   func() float64

	changeCb *callbacks.Callback[[]*model.Vehicle]
	eventCb  *callbacks.Callback[*Event]
}

func New(src store.Source, cfg Config) *Tracker {
	t := &Tracker{
		logger:   slog.Default().With("logger", "tracker"),
		src:      src,
		cfg:      cfg,
		status:   NewStatusTracker(cfg.Capacity),
		loading:  true,
		stop:     make(chan struct{}),
		changeCb: callbacks.New[[]*model.Vehicle](),
		eventCb:  callbacks.New[*Event](),
	}

	if cfg.Jitter > 0 {
		t.jitter = func() float64 {
			return (rand.Float64()*2 - 1) * cfg.Jitter
		}
	}

	return t
}

// Start subscribes to the vehicles collection. The first snapshot is processed before it returns.
func (t *Tracker) Start() {
	t.mx.Lock()
	if t.started || t.closed {
		t.mx.Unlock()
		return
	}

	t.started = true
	t.mx.Unlock()

	unsub := t.src.Subscribe(store.Collection(model.VehiclesCollection).Order("plate", false), t.onSnapshot, t.onError)

	t.mx.Lock()

	if t.closed {
		t.mx.Unlock()
		unsub()

		return
	}

	t.unsub = unsub
	t.mx.Unlock()
}

// Run drives the movement timer until ctx is done or the tracker is closed.
func (t *Tracker) Run(ctx context.Context) error {
	interval := t.cfg.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.stop:
			return nil
		case <-ticker.C:
			t.tick()
		}
	}
}

// Close releases the subscription and stops the timer. No state changes after it returns.
func (t *Tracker) Close() {
	t.mx.Lock()

	if t.closed {
		t.mx.Unlock()
		return
	}

	t.closed = true
	close(t.stop)

	unsub := t.unsub
	t.unsub = nil
	t.mx.Unlock()

	// waits for a delivery in flight, it needs t.mx
	if unsub != nil {
		unsub()
	}

	t.logger.Debug("tracker closed")
}

func (t *Tracker) OnChange(name string, fn func(vs []*model.Vehicle) bool) {
	t.changeCb.Subscribe(name, fn)
}

func (t *Tracker) OnEvent(name string, fn func(e *Event) bool) {
	t.eventCb.Subscribe(name, fn)
}

func (t *Tracker) RemoveListener(name string) {
	t.changeCb.Unsubscribe(name)
	t.eventCb.Unsubscribe(name)
}

func (t *Tracker) Vehicles() []*model.Vehicle {
	t.mx.RLock()
	defer t.mx.RUnlock()

	return t.copyVehicles()
}

func (t *Tracker) Get(internalID string) *model.Vehicle {
	t.mx.RLock()
	defer t.mx.RUnlock()

	return t.find(internalID).Clone()
}

func (t *Tracker) Movements() []*Movement {
	t.mx.RLock()
	defer t.mx.RUnlock()

	return t.status.Movements()
}

func (t *Tracker) Loading() bool {
	t.mx.RLock()
	defer t.mx.RUnlock()

	return t.loading
}

func (t *Tracker) Err() error {
	t.mx.RLock()
	defer t.mx.RUnlock()

	return t.err
}

// AssignRoute handles a route assignment. Unknown vehicles are ignored (false, nil).
func (t *Tracker) AssignRoute(internalID string, origin, dest model.Pos) (bool, error) {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.closed {
		return false, nil
	}

	v := t.find(internalID)
	if v == nil {
		t.logger.Debug("route for unknown vehicle " + internalID)
		return false, nil
	}

	m, err := t.status.Assign(v, origin, dest, time.Now())
	if err != nil {
		t.logger.Warn("can't assign route", slog.String("vehicle", v.ID), slog.Any("error", err))
		return true, err
	}

	t.logger.Info("route assigned", slog.String("vehicle", v.ID), slog.String("from", origin.String()), slog.String("to", dest.String()))
	movingMetric.Set(float64(len(t.status.moving)))

	t.publish()
	t.eventCb.AddMessage(&Event{Type: EventRouteAssigned, Vehicle: v.Clone(), Movement: m.Clone()})

	return true, nil
}

// DestinationReached handles arrival. Returns false if nothing changed.
func (t *Tracker) DestinationReached(internalID string) bool {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.closed {
		return false
	}

	v := t.find(internalID)
	if v == nil {
		t.logger.Debug("arrival of unknown vehicle " + internalID)
		return false
	}

	return t.reached(v)
}

func (t *Tracker) reached(v *model.Vehicle) bool {
	m, ok := t.status.Reached(v)
	if !ok {
		return false
	}

	t.logger.Info("destination reached", slog.String("vehicle", v.ID))
	movingMetric.Set(float64(len(t.status.moving)))

	t.publish()
	t.eventCb.AddMessage(&Event{Type: EventArrived, Vehicle: v.Clone(), Movement: m.Clone()})

	return true
}

func (t *Tracker) onSnapshot(recs []*store.Record) {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.closed {
		return
	}

	next := make([]*model.Vehicle, 0, len(recs))
	seen := util.NewStringSet()

	for _, r := range recs {
		if seen.Has(r.ID) {
			t.logger.Warn("duplicate internal id " + r.ID)
			continue
		}

		seen.Add(r.ID)
		next = append(next, model.VehicleFromRecord(r.ID, r.Fields, r.UpdatedAt))
	}

	for i, v := range next {
		t.cfg.Layout.Normalize(v, i, len(next))
	}

	if n := t.cfg.Layout.Resolve(next); n > 0 {
		t.logger.Debug("resolved collisions", slog.Int("moved", n))
	}

	t.status.Merge(next, t.vehicles)

	t.vehicles = next
	t.loading = false
	t.err = nil

	vehiclesMetric.Set(float64(len(next)))
	movingMetric.Set(float64(len(t.status.moving)))

	t.publish()
}

func (t *Tracker) onError(err error) {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.closed {
		return
	}

	t.loading = false
	t.err = err
	t.logger.Error("vehicles subscription error", slog.Any("error", err))
}

func (t *Tracker) tick() {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.closed || len(t.status.moving) == 0 {
		return
	}

	arrived := t.status.Step(t.cfg.Step, t.cfg.ArrivalMeters, t.jitter)

	for _, v := range t.vehicles {
		if m, ok := t.status.moving[v.InternalID]; ok {
			v.Pos = m.Pos
		}
	}

	for _, id := range arrived {
		if v := t.find(id); v != nil {
			t.reached(v)
		}
	}

	if len(arrived) == 0 {
		t.publish()
	}
}

func (t *Tracker) find(internalID string) *model.Vehicle {
	for _, v := range t.vehicles {
		if v.InternalID == internalID {
			return v
		}
	}

	return nil
}

func (t *Tracker) copyVehicles() []*model.Vehicle {
	res := make([]*model.Vehicle, len(t.vehicles))
	for i, v := range t.vehicles {
		res[i] = v.Clone()
	}

	return res
}

func (t *Tracker) publish() {
	t.changeCb.AddMessage(t.copyVehicles())
}
