package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm matches the constant used across the platform; distances
// are always kilometers.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// latitude/longitude pairs.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Located is anything with a coordinate that can carry a computed
// distance back to the caller.
type Located interface {
	Coordinate() (lat, lon float64, ok bool)
}

// Near holds an item together with its distance from a reference point.
type Near[T any] struct {
	Item     T
	Distance float64
}

// FilterByRadius computes the distance from (lat, lon) to every candidate,
// drops candidates without a coordinate or beyond radiusKm (the radius is
// inclusive), and returns the rest sorted ascending by distance.
func FilterByRadius[T Located](lat, lon, radiusKm float64, candidates []T) []Near[T] {
	out := make([]Near[T], 0, len(candidates))
	for _, c := range candidates {
		clat, clon, ok := c.Coordinate()
		if !ok {
			continue
		}
		d := Haversine(lat, lon, clat, clon)
		if d <= radiusKm {
			out = append(out, Near[T]{Item: c, Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// EstimateDurationMins estimates travel time for a distance assuming the
// given average speed in km/h.
func EstimateDurationMins(distanceKm, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = 30.0
	}
	return distanceKm / speedKmh * 60
}
