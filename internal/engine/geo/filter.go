package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/rendis/placetap/internal/model"
)

const earthRadiusKm = 6371.0

// WithinArea reports whether c lies inside area. Records without coordinates and
// empty areas always pass.
func WithinArea(area orb.MultiPolygon, c *model.Coordinates) bool {
	if c == nil || len(area) == 0 {
		return true
	}
	return planar.MultiPolygonContains(area, c.Point())
}

// FilterByRadius keeps the places within radiusKm of center. Places without coordinates are dropped.
func FilterByRadius(places []model.StoredPlace, center orb.Point, radiusKm float64) []model.StoredPlace {
	var out []model.StoredPlace
	for _, p := range places {
		if p.Coords == nil {
			continue
		}
		if DistanceKm(center, p.Coords.Point()) <= radiusKm {
			out = append(out, p)
		}
	}
	return out
}

// Circle approximates the disc of radiusKm around center with n vertices.
func Circle(center orb.Point, radiusKm float64, n int) orb.Polygon {
	if n < 8 {
		n = 8
	}
	latDeg := radiusKm / 111.0 // ~111 km per degree latitude
	lngDeg := radiusKm / (111.0 * math.Cos(center.Lat()*math.Pi/180.0))

	ring := make(orb.Ring, 0, n+1)
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{center.Lon() + lngDeg*math.Cos(a), center.Lat() + latDeg*math.Sin(a)})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// DistanceKm is the haversine distance between two points.
func DistanceKm(a, b orb.Point) float64 {
	lat1, lng1 := a.Lat(), a.Lon()
	lat2, lng2 := b.Lat(), b.Lon()
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLng := (lng2 - lng1) * math.Pi / 180.0
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ZoomFor picks the map zoom whose viewport roughly covers bound, clamped to [10, 17].
func ZoomFor(bound orb.Bound) int {
	span := math.Max(bound.Max.Lat()-bound.Min.Lat(), bound.Max.Lon()-bound.Min.Lon())
	if span <= 0 {
		return 15
	}
	// At zoom z one 256px tile spans 360/2^z degrees; the results viewport is about four tiles wide.
	z := int(math.Floor(math.Log2(360.0 * 4 / span)))
	return max(10, min(17, z))
}
