// Package isochrone implements the sparse tile-based isochrone polygonizer
// (spec component C5): frontier extraction on the base edge-based graph,
// Web Mercator raster stamping, morphological closing, Moore-neighbor
// boundary tracing, and Douglas-Peucker simplification.
package isochrone

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// EarthRadiusM is the spherical Mercator sphere radius (the WGS84 equatorial
// radius used by Web Mercator); pkg/geo's haversine uses a different, 6,371 km
// mean radius.
const EarthRadiusM = 6_378_137.0

// ToMercator projects WGS84 degrees to spherical Web Mercator meters.
func ToMercator(latDeg, lonDeg float64) r2.Vec {
	x := lonDeg * math.Pi / 180 * EarthRadiusM
	y := math.Log(math.Tan(latDeg*math.Pi/180/2+math.Pi/4)) * EarthRadiusM
	return r2.Vec{X: x, Y: y}
}

// FromMercator is the inverse of ToMercator, returning (lon, lat) degrees
// to match spec.md §4.5's "lon then lat" output order.
func FromMercator(x, y float64) (lonDeg, latDeg float64) {
	lonDeg = (x / EarthRadiusM) * 180 / math.Pi
	latDeg = (2*math.Atan(math.Exp(y/EarthRadiusM)) - math.Pi/2) * 180 / math.Pi
	return lonDeg, latDeg
}
