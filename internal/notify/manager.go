package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/crack2116/fleettrack/internal/store"
	"github.com/crack2116/fleettrack/pkg/model"
	"github.com/crack2116/fleettrack/pkg/storeerr"
)

const DefaultCap = 50

type Backend interface {
	store.Source
	store.Writer
}

// AuthState reports the signed in user. OnChange calls fn with the current user
// right away and on every change; empty user means signed out.
type AuthState interface {
	OnChange(fn func(user string)) (cancel func())
}

type Manager struct {
	logger  *slog.Logger
	backend Backend
	cap     int
	retry   storeerr.Policy
}

func New(backend Backend, limit int, retry storeerr.Policy) *Manager {
	if limit <= 0 {
		limit = DefaultCap
	}

	return &Manager{
		logger:  slog.Default().With("logger", "notify"),
		backend: backend,
		cap:     limit,
		retry:   retry,
	}
}

func (m *Manager) Cap() int {
	return m.cap
}

// Subscription holds the live feed of one user.
// fn is called with the subscription locked and must not call Close.
type Subscription struct {
	mx     sync.Mutex
	userID string
	fn     func(*Feed)
	feed   *Feed
	unsub  func()
	closed bool
	logger *slog.Logger
}

// Subscribe starts a live feed. The initial value is delivered before it returns.
func (m *Manager) Subscribe(userID string, fn func(*Feed)) *Subscription {
	s := &Subscription{
		userID: userID,
		fn:     fn,
		feed:   &Feed{Loading: true},
		logger: m.logger.With("user", userID),
	}

	if userID == "" {
		s.onSnapshot(nil)
		s.onError(storeerr.Errorf(storeerr.Unauthenticated, "subscribe", "no user"))

		return s
	}

	q := store.Collection(model.NotificationsCollection).
		Where("user_id", userID).
		Order("created_at", true).
		WithLimit(m.cap)

	unsub := m.backend.Subscribe(q, s.onSnapshot, s.onError)

	s.mx.Lock()

	if s.closed {
		s.mx.Unlock()
		unsub()

		return s
	}

	s.unsub = unsub
	s.mx.Unlock()

	subscribersMetric.Inc()

	return s
}

func (s *Subscription) onSnapshot(recs []*store.Record) {
	items := make([]*model.Notification, 0, len(recs))
	for _, r := range recs {
		items = append(items, model.NotificationFromRecord(r.ID, r.Fields))
	}

	// backends order by created_at already; keep the order stable on equal timestamps
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return
	}

	s.feed = newFeed(items)
	s.deliver()
}

func (s *Subscription) onError(err error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return
	}

	s.logger.Warn("feed error", slog.Any("error", err))

	f := s.feed.Clone()
	f.Loading = false
	f.Err = err
	s.feed = f
	s.deliver()
}

func (s *Subscription) deliver() {
	if s.fn != nil {
		s.fn(s.feed.Clone())
	}
}

func (s *Subscription) UserID() string {
	return s.userID
}

func (s *Subscription) Feed() *Feed {
	s.mx.Lock()
	defer s.mx.Unlock()

	return s.feed.Clone()
}

// Close stops delivery. Safe to call more than once.
func (s *Subscription) Close() {
	s.mx.Lock()

	if s.closed {
		s.mx.Unlock()
		return
	}

	s.closed = true
	unsub := s.unsub
	s.unsub = nil
	s.mx.Unlock()

	if unsub != nil {
		unsub()
		subscribersMetric.Dec()
	}
}

// Watcher keeps a feed subscription for whoever is signed in.
type Watcher struct {
	mx     sync.Mutex
	sub    *Subscription
	cancel func()
	closed bool
}

// Watch follows auth state: every user change closes the old feed and opens a new one.
// When signed out fn gets an empty feed with an unauthenticated error.
func (m *Manager) Watch(state AuthState, fn func(*Feed)) *Watcher {
	w := &Watcher{}

	cancel := state.OnChange(func(user string) {
		w.mx.Lock()
		defer w.mx.Unlock()

		if w.closed {
			return
		}

		if w.sub != nil {
			if w.sub.UserID() == user {
				return
			}

			w.sub.Close()
		}

		w.sub = m.Subscribe(user, fn)
	})

	w.mx.Lock()
	defer w.mx.Unlock()

	if w.closed {
		cancel()
	} else {
		w.cancel = cancel
	}

	return w
}

func (w *Watcher) Feed() *Feed {
	w.mx.Lock()
	defer w.mx.Unlock()

	if w.sub == nil {
		return &Feed{Loading: true}
	}

	return w.sub.Feed()
}

func (w *Watcher) Close() {
	w.mx.Lock()
	defer w.mx.Unlock()

	if w.closed {
		return
	}

	w.closed = true

	if w.cancel != nil {
		w.cancel()
	}

	if w.sub != nil {
		w.sub.Close()
	}
}

// Create stores a new notification and returns its id.
func (m *Manager) Create(ctx context.Context, n *model.Notification) (string, error) {
	if n.UserID == "" {
		return "", storeerr.Errorf(storeerr.InvalidArgument, "create", "notification without user")
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	var id string

	err := storeerr.Retry(ctx, m.retry, func() error {
		var err error
		id, err = m.backend.Create(ctx, model.NotificationsCollection, n.Fields())

		return err
	})

	if err != nil {
		m.logger.Error("can't create notification", slog.String("user", n.UserID), slog.Any("error", err))
		return "", err
	}

	n.ID = id
	createdMetric.WithLabelValues(string(n.Category)).Inc()

	return id, nil
}

// MarkRead sets read on one notification. Already read is a no-op;
// a missing one gives a not-found error.
func (m *Manager) MarkRead(ctx context.Context, id string) error {
	rec, err := m.backend.Get(ctx, model.NotificationsCollection, id)
	if err != nil {
		if storeerr.Is(err, storeerr.NotFound) {
			m.logger.Warn("mark read of missing notification " + id)
		}

		return err
	}

	if model.NotificationFromRecord(rec.ID, rec.Fields).Read {
		return nil
	}

	err = storeerr.Retry(ctx, m.retry, func() error {
		return m.backend.Update(ctx, model.NotificationsCollection, id, map[string]any{"read": true})
	})

	if err != nil {
		m.logger.Error("can't mark notification read", slog.String("id", id), slog.Any("error", err))
		return err
	}

	readMetric.Inc()

	return nil
}

// MarkAllRead sets read on every unread notification of the user.
// Failed updates are collected in the result; the successful ones stay.
func (m *Manager) MarkAllRead(ctx context.Context, userID string) (*BulkResult, error) {
	if userID == "" {
		return nil, storeerr.Errorf(storeerr.Unauthenticated, "mark_all_read", "no user")
	}

	recs, err := m.backend.Find(ctx, store.Collection(model.NotificationsCollection).
		Where("user_id", userID).
		Where("read", false))
	if err != nil {
		return nil, fmt.Errorf("find unread: %w", err)
	}

	res := &BulkResult{Total: len(recs), Failed: make(map[string]error)}

	for _, r := range recs {
		if err := m.backend.Update(ctx, model.NotificationsCollection, r.ID, map[string]any{"read": true}); err != nil {
			m.logger.Error("can't mark notification read", slog.String("id", r.ID), slog.Any("error", err))
			res.Failed[r.ID] = err

			continue
		}

		res.Updated++
	}

	readMetric.Add(float64(res.Updated))

	if len(res.Failed) > 0 {
		m.logger.Warn(fmt.Sprintf("mark all read: %d of %d failed", len(res.Failed), res.Total), slog.String("user", userID))
	}

	return res, nil
}
