package routing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/errors"
)

const earthRadiusMeters = 6371000.0

var _ contract.RouteProvider = (*Haversine)(nil)

// speeds in meters per second
var speeds = map[domain.Mode]float64{
	domain.ModeCar:  50_000.0 / 3600,
	domain.ModeWalk: 5_000.0 / 3600,
}

// Haversine estimates a route offline as the great circle between both points.
type Haversine struct {
	log *slog.Logger
}

func NewHaversine(log *slog.Logger) *Haversine {
	return &Haversine{log: log}
}

func (h *Haversine) Quote(ctx context.Context, origin, destination domain.Point, mode domain.Mode) (domain.RouteQuote, error) {
	if err := ctx.Err(); err != nil {
		return domain.RouteQuote{}, fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	speed, ok := speeds[mode]
	if !ok {
		h.log.Warn("Unknown travel mode, falling back to car", "mode", mode)
		speed = speeds[domain.ModeCar]
	}
	distance := DistanceMeters(origin, destination)
	return domain.RouteQuote{
		DistanceMeters:  distance,
		DurationSeconds: distance / speed,
		Geometry: [][2]float64{
			{origin.Lng, origin.Lat},
			{destination.Lng, destination.Lat},
		},
	}, nil
}

// DistanceMeters is the great circle distance between two points.
func DistanceMeters(a, b domain.Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
