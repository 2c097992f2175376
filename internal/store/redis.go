package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/crack2116/fleettrack/pkg/storeerr"
)

var _ Store = &Redis{}

const (
	docPrefix    = "doc:"
	colPrefix    = "col:"
	changePrefix = "chg:"
)

type redisDoc struct {
	Fields    map[string]any `json:"fields"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Redis keeps documents as json strings and publishes a change event per write,
// so every process subscribed to the same redis sees the changes.
type Redis struct {
	client *redis.Client
	subs   *registry
	logger *slog.Logger

	mx     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return NewRedisWithClient(redis.NewClient(opts)), nil
}

func NewRedisWithClient(client *redis.Client) *Redis {
	r := &Redis{
		client: client,
		logger: slog.Default().With("logger", "store.redis"),
	}

	r.subs = newRegistry(r.logger, r.Find)

	return r
}

func docKey(collection, id string) string {
	return docPrefix + collection + ":" + id
}

func (r *Redis) Start(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return redisErr("connect", err)
	}

	ps := r.client.PSubscribe(ctx, changePrefix+"*")

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return redisErr("subscribe", err)
	}

	r.mx.Lock()
	r.pubsub = ps
	r.done = make(chan struct{})
	r.mx.Unlock()

	go r.listen(ps, r.done)

	return nil
}

func (r *Redis) listen(ps *redis.PubSub, done chan struct{}) {
	defer close(done)

	for msg := range ps.Channel() {
		r.subs.notify(strings.TrimPrefix(msg.Channel, changePrefix))
	}
}

func (r *Redis) Stop() {
	r.mx.Lock()
	ps, done := r.pubsub, r.done
	r.pubsub = nil
	r.mx.Unlock()

	if ps != nil {
		_ = ps.Close()
		<-done
	}

	if err := r.client.Close(); err != nil {
		r.logger.Error("error closing redis client", slog.Any("error", err))
	}
}

func (r *Redis) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	return r.subs.subscribe(q, onSnapshot, onError)
}

func (r *Redis) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()

	if err := r.Put(ctx, collection, id, fields); err != nil {
		return "", err
	}

	return id, nil
}

func (r *Redis) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	if collection == "" || id == "" {
		return countError("put", storeerr.Errorf(storeerr.InvalidArgument, "put", "empty collection or id"))
	}

	data, err := json.Marshal(&redisDoc{Fields: fields, UpdatedAt: time.Now()})
	if err != nil {
		return countError("put", storeerr.New(storeerr.InvalidArgument, "put", err))
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, docKey(collection, id), data, 0)
		p.SAdd(ctx, colPrefix+collection, id)
		p.Publish(ctx, changePrefix+collection, id)

		return nil
	})

	return countError("put", redisErr("put", err))
}

func (r *Redis) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	key := docKey(collection, id)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		doc, err := r.load(ctx, tx, key)
		if err != nil {
			return err
		}

		if doc.Fields == nil {
			doc.Fields = make(map[string]any, len(fields))
		}

		for k, v := range fields {
			doc.Fields[k] = v
		}

		doc.UpdatedAt = time.Now()

		data, err := json.Marshal(doc)
		if err != nil {
			return storeerr.New(storeerr.InvalidArgument, "update", err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, 0)
			p.Publish(ctx, changePrefix+collection, id)

			return nil
		})

		return err
	}, key)

	return countError("update", redisErr("update", err))
}

func (r *Redis) Delete(ctx context.Context, collection, id string) error {
	var del *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, docKey(collection, id))
		p.SRem(ctx, colPrefix+collection, id)
		p.Publish(ctx, changePrefix+collection, id)

		return nil
	})

	if err != nil {
		return countError("delete", redisErr("delete", err))
	}

	if del.Val() == 0 {
		return countError("delete", storeerr.Errorf(storeerr.NotFound, "delete", "%s/%s", collection, id))
	}

	return nil
}

func (r *Redis) Get(ctx context.Context, collection, id string) (*Record, error) {
	doc, err := r.load(ctx, r.client, docKey(collection, id))
	if err != nil {
		return nil, redisErr("get", err)
	}

	return &Record{ID: id, Fields: doc.Fields, UpdatedAt: doc.UpdatedAt}, nil
}

func (r *Redis) Find(ctx context.Context, q Query) ([]*Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ids, err := r.client.SMembers(ctx, colPrefix+q.Collection).Result()
	if err != nil {
		return nil, countError("find", redisErr("find", err))
	}

	if len(ids) == 0 {
		return []*Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(q.Collection, id)
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, countError("find", redisErr("find", err))
	}

	recs := make([]*Record, 0, len(vals))

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}

		doc := new(redisDoc)
		if err := json.Unmarshal([]byte(s), doc); err != nil {
			r.logger.Warn("bad document", slog.String("key", keys[i]), slog.Any("error", err))
			continue
		}

		if doc.Fields == nil {
			doc.Fields = make(map[string]any)
		}

		recs = append(recs, &Record{ID: ids[i], Fields: doc.Fields, UpdatedAt: doc.UpdatedAt})
	}

	return apply(q, recs), nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *Redis) load(ctx context.Context, c getter, key string) (*redisDoc, error) {
	s, err := c.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	doc := new(redisDoc)
	if err := json.Unmarshal([]byte(s), doc); err != nil {
		return nil, storeerr.New(storeerr.FailedPrecondition, "load", err)
	}

	return doc, nil
}

func redisErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *storeerr.Error
	if errors.As(err, &se) {
		return err
	}

	var netErr net.Error

	switch {
	case errors.Is(err, redis.Nil):
		return storeerr.New(storeerr.NotFound, op, err)
	case errors.Is(err, redis.TxFailedErr):
		return storeerr.New(storeerr.Aborted, op, err)
	case errors.Is(err, redis.ErrClosed):
		return storeerr.New(storeerr.FailedPrecondition, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return storeerr.New(storeerr.DeadlineExceeded, op, err)
	case errors.Is(err, context.Canceled):
		return storeerr.New(storeerr.Aborted, op, err)
	case errors.Is(err, io.EOF), errors.As(err, &netErr):
		return storeerr.New(storeerr.Unavailable, op, err)
	}

	msg := err.Error()

	switch {
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "WRONGPASS"):
		return storeerr.New(storeerr.Unauthenticated, op, err)
	case strings.HasPrefix(msg, "NOPERM"):
		return storeerr.New(storeerr.PermissionDenied, op, err)
	case strings.HasPrefix(msg, "OOM"):
		return storeerr.New(storeerr.ResourceExhausted, op, err)
	case strings.HasPrefix(msg, "LOADING"), strings.HasPrefix(msg, "BUSY"):
		return storeerr.New(storeerr.Unavailable, op, err)
	}

	return storeerr.New(storeerr.Unknown, op, err)
}
