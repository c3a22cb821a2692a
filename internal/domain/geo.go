package domain

// Box is a latitude/longitude bounding rectangle for spatial range queries
// against the observation store.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// BoxAround returns a box extending tolerance degrees on each side of a
// point. No wrap handling at the antimeridian; monitored sites are coastal
// and the tolerance is small.
func BoxAround(lat, lon, tolerance float64) Box {
	return Box{
		MinLat: lat - tolerance,
		MaxLat: lat + tolerance,
		MinLon: lon - tolerance,
		MaxLon: lon + tolerance,
	}
}

// Contains reports whether the point lies inside the box, borders included.
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
