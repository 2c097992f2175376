package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crack2116/fleettrack/pkg/model"
)

func TestMergeCarriesTransit(t *testing.T) {
	st := NewStatusTracker(1)

	prev := []*model.Vehicle{
		{InternalID: "d1", Status: model.StatusInTransit},
		{InternalID: "d2", Status: model.StatusAvailable},
	}

	next := []*model.Vehicle{
		{InternalID: "d1", Status: model.StatusAvailable},
		{InternalID: "d2", Status: model.StatusAvailable},
		{InternalID: "d3", Status: model.StatusInTransit},
	}

	st.Merge(next, prev)

	assert.Equal(t, model.StatusInTransit, next[0].Status)
	assert.Equal(t, model.StatusAvailable, next[1].Status)
	assert.Equal(t, model.StatusInTransit, next[2].Status)
}

func TestAssignReached(t *testing.T) {
	st := NewStatusTracker(0)
	assert.Equal(t, 1, st.Capacity())

	v1 := &model.Vehicle{ID: "A", InternalID: "d1", Status: model.StatusAvailable}
	v2 := &model.Vehicle{ID: "B", InternalID: "d2", Status: model.StatusAvailable}

	origin, dest := model.NewPos(-12.1, -77.1), model.NewPos(-12.2, -77.2)

	m, err := st.Assign(v1, origin, dest, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "A", m.VehicleID)
	assert.Equal(t, model.StatusInTransit, v1.Status)
	assert.Equal(t, origin, v1.Pos)

	_, err = st.Assign(v2, origin, dest, time.Now())
	require.ErrorIs(t, err, ErrCapacity)

	_, err = st.Assign(v1, origin, model.NewPos(-12.3, -77.3), time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.NewPos(-12.3, -77.3), st.Movement("d1").Dest)

	m, ok := st.Reached(v1)
	assert.True(t, ok)
	assert.Equal(t, model.StatusAvailable, v1.Status)
	assert.Equal(t, m.Dest, v1.Pos)
	assert.Nil(t, st.Movement("d1"))

	_, ok = st.Reached(v1)
	assert.False(t, ok)
}

func TestMergeDropsVanished(t *testing.T) {
	st := NewStatusTracker(2)

	v := &model.Vehicle{InternalID: "d1"}
	_, err := st.Assign(v, model.NewPos(0, 0), model.NewPos(1, 1), time.Now())
	require.NoError(t, err)

	st.Merge([]*model.Vehicle{{InternalID: "d2"}}, []*model.Vehicle{v})

	assert.Empty(t, st.Movements())
}

func TestStep(t *testing.T) {
	st := NewStatusTracker(2)

	dest := model.NewPos(-12.1001, -77.1001)
	v := &model.Vehicle{InternalID: "d1"}
	_, err := st.Assign(v, model.NewPos(-12.1, -77.1), dest, time.Now())
	require.NoError(t, err)

	far := &model.Vehicle{InternalID: "d2"}
	_, err = st.Assign(far, model.NewPos(-12.1, -77.1), model.NewPos(-13, -78), time.Now())
	require.NoError(t, err)

	arrived := st.Step(0.5, 50, nil)

	assert.Equal(t, []string{"d1"}, arrived)
	assert.Less(t, st.Movement("d2").Pos.DistanceTo(model.NewPos(-13, -78)), model.NewPos(-12.1, -77.1).DistanceTo(model.NewPos(-13, -78)))
}
