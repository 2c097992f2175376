package tracking

import (
	"github.com/crack2116/fleettrack/pkg/model"
)

// Layout places vehicles that have no usable coordinates on a circle around Anchor.
type Layout struct {
	Anchor model.Pos
	// Radius of the circle, in coordinate units.
	Radius float64
	// Epsilon is the per-axis distance under which two positions are the same point.
	Epsilon float64
}

func DefaultLayout() Layout {
	return Layout{
		Anchor:  model.NewPos(-12.0464, -77.0428),
		Radius:  0.02,
		Epsilon: 1e-4,
	}
}

// Slot returns the position of index-th of total points on the circle,
// at index*360/total degrees. With no points it is the anchor itself.
func (l Layout) Slot(index, total int) model.Pos {
	if total <= 0 {
		return l.Anchor
	}

	return l.Anchor.OnCircle(l.Radius, float64(index)*(360/float64(total)))
}

// Normalize keeps explicit coordinates and gives the rest a slot.
func (l Layout) Normalize(v *model.Vehicle, index, total int) {
	if v == nil || v.HasPos {
		return
	}

	v.Pos = l.Slot(index, total)
}

// Resolve moves vehicles sharing a point with another one, or sitting exactly
// on the anchor, to their slot on the circle. Positions are compared as they were
// before the pass, so the outcome does not depend on processing order.
// Returns the number of moved vehicles.
func (l Layout) Resolve(vs []*model.Vehicle) int {
	orig := make([]model.Pos, len(vs))
	for i, v := range vs {
		orig[i] = v.Pos
	}

	moved := 0

	for i, v := range vs {
		if !l.collides(orig, i) {
			continue
		}

		v.Pos = l.Slot(i, len(vs))
		moved++
	}

	return moved
}

func (l Layout) collides(pos []model.Pos, i int) bool {
	if pos[i] == l.Anchor {
		return true
	}

	for j := range pos {
		if j != i && pos[i].Near(pos[j], l.Epsilon) {
			return true
		}
	}

	return false
}
