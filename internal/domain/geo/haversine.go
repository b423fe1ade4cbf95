package geo

import "math"

// EarthRadiusKm is the mean radius of Earth used for Haversine distance.
const EarthRadiusKm = 6371.0

// kmPerDegreeLat is the length of one degree of latitude.
const kmPerDegreeLat = 111.32

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// HaversineKm returns the great-circle distance in kilometres between two points.
func HaversineKm(a, b Point) float64 {
	lat1r := a.Lat * math.Pi / 180
	lat2r := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h a hair above 1 for antipodal points.
	h = math.Min(1, h)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Box is a lat/lon rectangle used as a cheap storage-side prefilter before the exact
// haversine check. LonBounded is false when the box spans a pole or the antimeridian,
// in which case only the latitude bounds apply.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	LonBounded     bool
}

// BoundingBox returns a rectangle that contains every point within radiusKm of center.
func BoundingBox(center Point, radiusKm float64) Box {
	dLat := radiusKm / kmPerDegreeLat
	box := Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
	}

	if box.MinLat <= -90 || box.MaxLat >= 90 {
		return box
	}

	// Widest longitude span occurs at the latitude edge closest to a pole.
	edge := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))
	cos := math.Cos(edge * math.Pi / 180)
	if cos <= 0 {
		return box
	}
	dLon := radiusKm / (kmPerDegreeLat * cos)
	if dLon >= 180 || center.Lon-dLon < -180 || center.Lon+dLon > 180 {
		return box
	}

	box.MinLon = center.Lon - dLon
	box.MaxLon = center.Lon + dLon
	box.LonBounded = true
	return box
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if !b.LonBounded {
		return true
	}
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}
