//nolint:gomnd
package model

import (
	"fmt"
	"math"
)

const (
	toRadian    = math.Pi / 180
	earthRadius = 6371000. // meters
)

// DistBea returns distance in meters and bearing in degrees from point 1 to point 2.
func DistBea(lat1, lon1, lat2, lon2 float64) (float64, float64) {
	// bearing
	y := math.Sin((lon2-lon1)*toRadian) * math.Cos(lat2*toRadian)
	x := math.Cos(lat1*toRadian)*math.Sin(lat2*toRadian) - math.Sin(lat1*toRadian)*math.Cos(lat2*toRadian)*math.Cos((lon2-lon1)*toRadian)
	bea := math.Atan2(y, x) / toRadian

	if bea < 0 {
		bea += 360
	}

	// haversine formula
	deltaF := (lat2 - lat1) * toRadian
	deltaL := (lon2 - lon1) * toRadian
	a := math.Sin(deltaF/2)*math.Sin(deltaF/2) + math.Cos(lat1*toRadian)*math.Cos(lat2*toRadian)*math.Sin(deltaL/2)*math.Sin(deltaL/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c, bea
}

type Pos struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewPos(lat, lon float64) Pos {
	return Pos{Lat: lat, Lon: lon}
}

func (p Pos) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Near is true when both coordinates differ by less than eps.
func (p Pos) Near(o Pos, eps float64) bool {
	return math.Abs(p.Lat-o.Lat) < eps && math.Abs(p.Lon-o.Lon) < eps
}

// OnCircle places a point on a circle of radius r (in coordinate units) around p.
// Angle 0 points along the latitude axis.
func (p Pos) OnCircle(r, angle float64) Pos {
	rad := angle * toRadian

	return Pos{
		Lat: p.Lat + r*math.Cos(rad),
		Lon: p.Lon + r*math.Sin(rad),
	}
}

// Towards moves frac of the way from p to dst.
func (p Pos) Towards(dst Pos, frac float64) Pos {
	if frac >= 1 {
		return dst
	}

	return Pos{
		Lat: p.Lat + (dst.Lat-p.Lat)*frac,
		Lon: p.Lon + (dst.Lon-p.Lon)*frac,
	}
}

func (p Pos) DistanceTo(o Pos) float64 {
	d, _ := DistBea(p.Lat, p.Lon, o.Lat, o.Lon)

	return d
}
