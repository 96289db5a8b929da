package sim

import (
	"fmt"
	"math"
)

// unitVector places a location on the unit sphere.
func unitVector(loc Location) (x, y, z float64) {
	lat := loc.Lat * math.Pi / 180
	lon := loc.Lon * math.Pi / 180
	return math.Cos(lat) * math.Cos(lon), math.Sin(lat), math.Cos(lat) * math.Sin(lon)
}

// ChordDistance returns the straight-line distance between two locations on a
// unit sphere, multiplied by scale.
func ChordDistance(a, b Location, scale float64) float64 {
	ax, ay, az := unitVector(a)
	bx, by, bz := unitVector(b)
	dx, dy, dz := ax-bx, ay-by, az-bz
	return math.Sqrt(dx*dx+dy*dy+dz*dz) * scale
}

// legDistance is the distance of the leg from→to. It fails instead of
// returning zero or NaN when either end has no location.
func legDistance(from, to ChainNode, scale float64) (float64, error) {
	if from.Location == nil {
		return 0, fmt.Errorf("leg %q -> %q: origin %q: %w", from.ID, to.ID, from.ID, ErrMissingLocation)
	}
	if to.Location == nil {
		return 0, fmt.Errorf("leg %q -> %q: destination %q: %w", from.ID, to.ID, to.ID, ErrMissingLocation)
	}
	return ChordDistance(*from.Location, *to.Location, scale), nil
}
