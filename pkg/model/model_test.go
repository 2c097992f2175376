package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleFromRecord(t *testing.T) {
	now := time.Now()
	v := VehicleFromRecord("doc1", map[string]any{"plate": "ABC-123", "lat": -12.05, "lon": "-77.04", "status": "in_transit"}, now)

	assert.Equal(t, "ABC-123", v.ID)
	assert.Equal(t, "doc1", v.InternalID)
	assert.True(t, v.HasPos)
	assert.InDelta(t, -77.04, v.Pos.Lon, 1e-9)
	assert.Equal(t, StatusInTransit, v.Status)
	assert.Equal(t, now, v.LastSeen)
}

func TestVehicleFromRecordNoCoords(t *testing.T) {
	v := VehicleFromRecord("doc2", map[string]any{"id": "X1", "lat": 10.0}, time.Time{})

	assert.Equal(t, "X1", v.ID)
	assert.False(t, v.HasPos)
	assert.Equal(t, StatusAvailable, v.Status)
	assert.Nil(t, v.ToWeb().LastSeen)

	v = VehicleFromRecord("doc3", map[string]any{"lat": "north", "lon": 1}, time.Time{})
	assert.False(t, v.HasPos)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusAvailable, ParseStatus(""))
	assert.Equal(t, StatusInTransit, ParseStatus("En Tránsito"))
	assert.Equal(t, Status("maintenance"), ParseStatus("maintenance"))
}

func TestNotificationFields(t *testing.T) {
	created := time.UnixMilli(1700000000123)
	n := &Notification{UserID: "u1", Title: "t", Message: "m", Category: "bogus", CreatedAt: created, Link: "/routes"}

	f := n.Fields()
	require.Equal(t, "info", f["category"])
	require.Equal(t, int64(1700000000123), f["created_at"])

	// numbers come back as float64 after a JSON round trip
	f["created_at"] = float64(1700000000123)
	n2 := NotificationFromRecord("n1", f)

	assert.Equal(t, "n1", n2.ID)
	assert.Equal(t, CategoryInfo, n2.Category)
	assert.True(t, n2.CreatedAt.Equal(created))
	assert.Equal(t, "/routes", n2.Link)
	assert.False(t, n2.Read)
}

func TestOnCircle(t *testing.T) {
	a := NewPos(10, 20)

	p := a.OnCircle(1, 90)
	assert.InDelta(t, 10, p.Lat, 1e-9)
	assert.InDelta(t, 21, p.Lon, 1e-9)

	p = a.OnCircle(2, 180)
	assert.InDelta(t, 8, p.Lat, 1e-9)
	assert.InDelta(t, 20, p.Lon, 1e-9)
}

func TestNear(t *testing.T) {
	a := NewPos(1, 1)

	assert.True(t, a.Near(NewPos(1.00005, 0.99995), 1e-4))
	assert.False(t, a.Near(NewPos(1.0002, 1), 1e-4))
}

func TestTowards(t *testing.T) {
	a := NewPos(0, 0)
	b := NewPos(10, -10)

	assert.Equal(t, NewPos(5, -5), a.Towards(b, 0.5))
	assert.Equal(t, b, a.Towards(b, 1.5))
}

func TestDistBea(t *testing.T) {
	d, b := DistBea(0, 0, 0, 1)

	assert.InDelta(t, 111195, d, 10)
	assert.InDelta(t, 90, b, 1e-6)

	d, b = DistBea(0, 0, -1, 0)
	assert.InDelta(t, 111195, d, 10)
	assert.InDelta(t, 180, b, 1e-6)
	assert.False(t, math.IsNaN(NewPos(1, 1).DistanceTo(NewPos(1, 1))))
}

func TestWebList(t *testing.T) {
	vs := []*Vehicle{
		{ID: "AAA-111", InternalID: "d1", Pos: NewPos(1, 2), Status: StatusAvailable},
		{ID: "BBB-222", InternalID: "d2", Status: StatusInTransit, LastSeen: time.Unix(100, 0)},
	}

	dtos := WebList(vs)

	require.Len(t, dtos, 2)
	assert.Equal(t, "d1", dtos[0].InternalID)
	assert.InDelta(t, 1.0, dtos[0].Lat, 1e-9)
	assert.Nil(t, dtos[0].LastSeen)
	assert.Equal(t, StatusInTransit, dtos[1].Status)
	require.NotNil(t, dtos[1].LastSeen)
}
