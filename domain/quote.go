package domain

import (
	"fmt"
	"math"
)

const (
	NotAvailable = "N/A"
	ZeroDistance = "0 km"
	ZeroEta      = "0 mins"
)

// RouteQuote is the routing provider answer for one origin/destination pair.
// Geometry holds [lng, lat] pairs in GeoJSON order.
type RouteQuote struct {
	DistanceMeters  float64      `json:"distanceMeters"`
	DurationSeconds float64      `json:"durationSeconds"`
	Geometry        [][2]float64 `json:"geometry,omitempty"`
}

func (q RouteQuote) Distance() string {
	return fmt.Sprintf("%.2f km", q.DistanceMeters/1000)
}

func (q RouteQuote) Eta() string {
	return fmt.Sprintf("%d mins", int(math.Round(q.DurationSeconds/60)))
}
