package gazetteer

import (
	"math"

	"github.com/liftcare/field-bot/internal/models"
)

const earthRadiusMeters = 6371000.0

// Distance returns the haversine great-circle distance in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Nearest returns the active point closest to (lat, lon) among those whose
// own radius covers the query. Equidistant candidates resolve to whichever
// comes first in snapshot order; callers must not rely on which one that is.
func (idx *Index) Nearest(lat, lon float64) (models.AddressPoint, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range idx.points {
		if !p.Active {
			continue
		}
		d := Distance(lat, lon, p.Lat, p.Lon)
		if d > p.Radius {
			continue
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return models.AddressPoint{}, false
	}
	return idx.points[best], true
}
