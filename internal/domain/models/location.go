package models

import "fmt"

// Position is one geographic sample in decimal degrees
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Latitude, p.Longitude)
}

// Route is the geometry returned by the routing service between two positions
type Route struct {
	From            Position   `json:"from"`
	To              Position   `json:"to"`
	Geometry        []Position `json:"geometry"`
	DistanceMeters  float64    `json:"distance_meters"`
	DurationSeconds float64    `json:"duration_seconds"`
}
