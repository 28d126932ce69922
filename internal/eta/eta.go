package eta

import (
	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/models"
)

// DefaultSpeedMps is ~28.8 km/h, a typical city driving speed.
const DefaultSpeedMps = 8.0

// PickupSeconds is a naive straight-line ETA for a driver reaching a
// passenger: planar distance / speed. Routing engines are deliberately not
// consulted, so the figure lines up with the distance shown next to it.
func PickupSeconds(from, to models.GeoPoint, speedMps float64) float64 {
	if speedMps <= 0 {
		speedMps = DefaultSpeedMps
	}
	return geo.DistanceKm(from, to) * 1000 / speedMps
}
