package tracking

import (
	"errors"
	"sort"
	"time"

	"github.com/crack2116/fleettrack/pkg/model"
	"github.com/crack2116/fleettrack/pkg/util"
)

var ErrCapacity = errors.New("all movement slots are busy")

// Movement is a simulated trip of a vehicle to its destination.
type Movement struct {
	InternalID string    `json:"internal_id"`
	VehicleID  string    `json:"vehicle_id"`
	Origin     model.Pos `json:"origin"`
	Dest       model.Pos `json:"dest"`
	Pos        model.Pos `json:"pos"`
	Started    time.Time `json:"started"`
}

func (m *Movement) Clone() *Movement {
	if m == nil {
		return nil
	}

	c := *m

	return &c
}

// StatusTracker owns the in_transit override. The store is not authoritative for
// it, so the status is carried from the previous in-memory snapshot.
// Not safe for concurrent use; Tracker serializes access.
type StatusTracker struct {
	capacity int
	moving   map[string]*Movement
}

func NewStatusTracker(capacity int) *StatusTracker {
	if capacity < 1 {
		capacity = 1
	}

	return &StatusTracker{
		capacity: capacity,
		moving:   make(map[string]*Movement),
	}
}

// Merge carries status from prev into next, matching by InternalID.
// Movements of vehicles gone from next are dropped.
func (st *StatusTracker) Merge(next, prev []*model.Vehicle) {
	prevBy := make(map[string]*model.Vehicle, len(prev))
	for _, p := range prev {
		prevBy[p.InternalID] = p
	}

	present := util.NewStringSet()

	for _, v := range next {
		present.Add(v.InternalID)

		if p, ok := prevBy[v.InternalID]; ok && p.Status == model.StatusInTransit {
			v.Status = model.StatusInTransit
		}

		if m, ok := st.moving[v.InternalID]; ok {
			v.Status = model.StatusInTransit
			v.Pos = m.Pos
		}
	}

	for id := range st.moving {
		if !present.Has(id) {
			delete(st.moving, id)
		}
	}
}

// Assign moves vehicle from available to in_transit and starts its movement.
// Assigning a new route to a moving vehicle replaces the route.
func (st *StatusTracker) Assign(v *model.Vehicle, origin, dest model.Pos, now time.Time) (*Movement, error) {
	if _, ok := st.moving[v.InternalID]; !ok && len(st.moving) >= st.capacity {
		return nil, ErrCapacity
	}

	m := &Movement{
		InternalID: v.InternalID,
		VehicleID:  v.ID,
		Origin:     origin,
		Dest:       dest,
		Pos:        origin,
		Started:    now,
	}

	st.moving[v.InternalID] = m
	v.Status = model.StatusInTransit
	v.Pos = origin

	return m, nil
}

// Reached moves vehicle back to available and clears its movement.
// Returns the finished movement, nil if the vehicle was not moving.
func (st *StatusTracker) Reached(v *model.Vehicle) (*Movement, bool) {
	m := st.moving[v.InternalID]
	delete(st.moving, v.InternalID)

	if m == nil && v.Status != model.StatusInTransit {
		return nil, false
	}

	v.Status = model.StatusAvailable

	if m != nil {
		v.Pos = m.Dest
	}

	return m, true
}

// Step advances every movement frac of the remaining way. jitter, if not nil, is
// added to both coordinates. Returns ids of vehicles within arrival meters of destination.
func (st *StatusTracker) Step(frac, arrival float64, jitter func() float64) []string {
	var arrived []string

	for id, m := range st.moving {
		m.Pos = m.Pos.Towards(m.Dest, frac)

		if jitter != nil {
			m.Pos.Lat += jitter()
			m.Pos.Lon += jitter()
		}

		if m.Pos.DistanceTo(m.Dest) <= arrival {
			arrived = append(arrived, id)
		}
	}

	sort.Strings(arrived)

	return arrived
}

func (st *StatusTracker) Movement(id string) *Movement {
	if m, ok := st.moving[id]; ok {
		return m.Clone()
	}

	return nil
}

func (st *StatusTracker) Movements() []*Movement {
	res := make([]*Movement, 0, len(st.moving))

	for _, m := range st.moving {
		res = append(res, m.Clone())
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].InternalID < res[j].InternalID
	})

	return res
}

func (st *StatusTracker) Capacity() int {
	return st.capacity
}
