package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crack2116/fleettrack/pkg/storeerr"
)

var _ Store = &Memory{}

// Memory is an in-process document store. Writes notify subscribers before returning.
type Memory struct {
	mx     sync.RWMutex
	data   map[string]map[string]*Record
	subs   *registry
	logger *slog.Logger
}

func NewMemory() *Memory {
	m := &Memory{
		data:   make(map[string]map[string]*Record),
		logger: slog.Default().With("logger", "store.memory"),
	}

	m.subs = newRegistry(m.logger, m.Find)

	return m
}

func (m *Memory) Start(_ context.Context) error {
	return nil
}

func (m *Memory) Stop() {
	// no-op
}

func (m *Memory) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	return m.subs.subscribe(q, onSnapshot, onError)
}

func (m *Memory) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()

	if err := m.Put(ctx, collection, id, fields); err != nil {
		return "", err
	}

	return id, nil
}

// Put creates or replaces a document with a known id.
func (m *Memory) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctxErr(ctx, "put"); err != nil {
		return err
	}

	if collection == "" || id == "" {
		return countError("put", storeerr.Errorf(storeerr.InvalidArgument, "put", "empty collection or id"))
	}

	rec := (&Record{ID: id, Fields: fields, UpdatedAt: time.Now()}).Clone()

	m.mx.Lock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]*Record)
	}

	m.data[collection][id] = rec
	m.mx.Unlock()

	m.subs.notify(collection)

	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctxErr(ctx, "update"); err != nil {
		return err
	}

	m.mx.Lock()
	rec, ok := m.data[collection][id]

	if !ok {
		m.mx.Unlock()
		return countError("update", storeerr.Errorf(storeerr.NotFound, "update", "%s/%s", collection, id))
	}

	rec = rec.Clone()
	for k, v := range fields {
		rec.Fields[k] = v
	}

	rec.UpdatedAt = time.Now()
	m.data[collection][id] = rec
	m.mx.Unlock()

	m.subs.notify(collection)

	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctxErr(ctx, "delete"); err != nil {
		return err
	}

	m.mx.Lock()
	if _, ok := m.data[collection][id]; !ok {
		m.mx.Unlock()
		return countError("delete", storeerr.Errorf(storeerr.NotFound, "delete", "%s/%s", collection, id))
	}

	delete(m.data[collection], id)
	m.mx.Unlock()

	m.subs.notify(collection)

	return nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Record, error) {
	if err := ctxErr(ctx, "get"); err != nil {
		return nil, err
	}

	m.mx.RLock()
	defer m.mx.RUnlock()

	rec, ok := m.data[collection][id]
	if !ok {
		return nil, storeerr.Errorf(storeerr.NotFound, "get", "%s/%s", collection, id)
	}

	return rec.Clone(), nil
}

func (m *Memory) Find(ctx context.Context, q Query) ([]*Record, error) {
	if err := ctxErr(ctx, "find"); err != nil {
		return nil, err
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mx.RLock()
	recs := make([]*Record, 0, len(m.data[q.Collection]))

	for _, r := range m.data[q.Collection] {
		recs = append(recs, r.Clone())
	}
	m.mx.RUnlock()

	return apply(q, recs), nil
}

func ctxErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return storeerr.New(storeerr.Classify(err), op, err)
	}

	return nil
}
