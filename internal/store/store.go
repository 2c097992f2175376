package store

import (
	"context"
	"sort"
	"time"

	"github.com/spf13/cast"

	"github.com/crack2116/fleettrack/internal/database"
	"github.com/crack2116/fleettrack/pkg/storeerr"
)

type Record struct {
	ID        string
	Fields    map[string]any
	UpdatedAt time.Time
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	f := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		f[k] = v
	}

	return &Record{ID: r.ID, Fields: f, UpdatedAt: r.UpdatedAt}
}

// Query selects documents of one collection by field equality.
type Query struct {
	Collection string
	Equal      map[string]any
	OrderBy    string
	Desc       bool
	// Limit 0 means no limit.
	Limit int
}

func Collection(name string) Query {
	return Query{Collection: name}
}

func (q Query) Where(field string, value any) Query {
	eq := make(map[string]any, len(q.Equal)+1)
	for k, v := range q.Equal {
		eq[k] = v
	}

	eq[field] = value
	q.Equal = eq

	return q
}

func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc

	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n

	return q
}

func (q Query) Validate() error {
	if q.Collection == "" {
		return storeerr.Errorf(storeerr.InvalidArgument, "query", "empty collection")
	}

	for k := range q.Equal {
		if !database.ValidField(k) {
			return storeerr.Errorf(storeerr.InvalidArgument, "query", "invalid field %q", k)
		}
	}

	if q.OrderBy != "" && !database.ValidField(q.OrderBy) {
		return storeerr.Errorf(storeerr.InvalidArgument, "query", "invalid order field %q", q.OrderBy)
	}

	if q.Limit < 0 {
		return storeerr.Errorf(storeerr.InvalidArgument, "query", "negative limit")
	}

	return nil
}

type (
	SnapshotFunc func(records []*Record)
	ErrorFunc    func(err error)
)

// Source delivers complete snapshots of a query result on every change.
// The first snapshot is delivered before Subscribe returns.
// The returned func releases the subscription; it is idempotent.
type Source interface {
	Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) func()
}

type Writer interface {
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (*Record, error)
	Find(ctx context.Context, q Query) ([]*Record, error)
}

type Store interface {
	Source
	Writer
	Start(ctx context.Context) error
	Stop()
}

func matches(r *Record, eq map[string]any) bool {
	for k, v := range eq {
		if !valueEqual(r.Fields[k], v) {
			return false
		}
	}

	return true
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func valueEqual(a, b any) bool {
	switch {
	case a == nil || b == nil:
		return a == nil && b == nil
	case isNumber(a) && isNumber(b):
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}

	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}

	return cast.ToString(a) == cast.ToString(b)
}

func less(a, b any) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	case isNumber(a) && isNumber(b):
		return cast.ToFloat64(a) < cast.ToFloat64(b)
	default:
		return cast.ToString(a) < cast.ToString(b)
	}
}

// apply filters, orders and limits records in memory.
func apply(q Query, recs []*Record) []*Record {
	res := make([]*Record, 0, len(recs))

	for _, r := range recs {
		if matches(r, q.Equal) {
			res = append(res, r)
		}
	}

	sort.SliceStable(res, func(i, j int) bool {
		if q.OrderBy != "" {
			a, b := res[i].Fields[q.OrderBy], res[j].Fields[q.OrderBy]

			if !valueEqual(a, b) {
				if q.Desc {
					return less(b, a)
				}

				return less(a, b)
			}
		}

		return res[i].ID < res[j].ID
	})

	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}

	return res
}
