package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const VehiclesCollection = "vehicles"

type Status string

const (
	StatusAvailable Status = "available"
	StatusInTransit Status = "in_transit"
)

func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "available", "disponible":
		return StatusAvailable
	case "in_transit", "in-transit", "in transit", "intransit", "en transito", "en tránsito":
		return StatusInTransit
	default:
		return Status(s)
	}
}

// Vehicle is a tracked entity rebuilt from every store snapshot.
type Vehicle struct {
	// ID is the business key (plate). It is not unique.
	ID string
	// InternalID is the store document id, unique within a snapshot.
	InternalID string
	Pos        Pos
	// HasPos is set when the record carried its own coordinates.
	HasPos   bool
	Status   Status
	LastSeen time.Time
}

type VehicleDTO struct {
	ID         string     `json:"id"`
	InternalID string     `json:"internal_id"`
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	Status     Status     `json:"status"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
}

// VehicleFromRecord decodes fields of a vehicles document.
// Coordinates are explicit only when both lat and lon are numeric.
func VehicleFromRecord(id string, fields map[string]any, updated time.Time) *Vehicle {
	v := &Vehicle{
		ID:         cast.ToString(fields["plate"]),
		InternalID: id,
		Status:     ParseStatus(cast.ToString(fields["status"])),
		LastSeen:   updated,
	}

	if v.ID == "" {
		v.ID = cast.ToString(fields["id"])
	}

	lat, err1 := cast.ToFloat64E(fields["lat"])
	lon, err2 := cast.ToFloat64E(fields["lon"])

	if fields["lat"] != nil && fields["lon"] != nil && err1 == nil && err2 == nil {
		v.Pos = NewPos(lat, lon)
		v.HasPos = true
	}

	return v
}

func (v *Vehicle) String() string {
	if v == nil {
		return "nil"
	}

	return fmt.Sprintf("%s (%s) %s %s", v.ID, v.InternalID, v.Status, v.Pos)
}

func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}

func (v *Vehicle) ToWeb() *VehicleDTO {
	if v == nil {
		return nil
	}

	dto := &VehicleDTO{
		ID:         v.ID,
		InternalID: v.InternalID,
		Lat:        v.Pos.Lat,
		Lon:        v.Pos.Lon,
		Status:     v.Status,
	}

	if !v.LastSeen.IsZero() {
		t := v.LastSeen
		dto.LastSeen = &t
	}

	return dto
}
