package domain

import "math"

// earthRadiusMeters is the mean radius of the WGS-84 reference sphere.
const earthRadiusMeters = 6371000

// Distance returns the great-circle distance between a and b in meters,
// computed with the haversine formula. Identical inputs return exactly 0,
// and Distance(a, b) == Distance(b, a) to floating-point precision.
func Distance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	rLat1 := radians(a.Lat)
	rLat2 := radians(b.Lat)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(rLat1)*math.Cos(rLat2)*sinLng*sinLng

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FindNearest returns the first venue in candidates whose distance to point
// is at most radiusMeters, or nil if none qualifies. Scan order is the
// input order: with several venues inside the radius the earliest one wins,
// which is how newest-first listings resolve co-located venues. Venues
// without a coordinate are skipped. A negative radius never matches, and a
// radius of 0 matches only an exactly equal coordinate.
func FindNearest(point Coordinate, candidates []Venue, radiusMeters float64) *Venue {
	if len(candidates) == 0 || radiusMeters < 0 {
		return nil
	}
	for i := range candidates {
		loc := candidates[i].Location
		if loc == nil {
			continue
		}
		if Distance(point, *loc) <= radiusMeters {
			return &candidates[i]
		}
	}
	return nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
