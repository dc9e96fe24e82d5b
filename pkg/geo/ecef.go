// Package geo holds the WGS84 geometry behind link evaluation: the
// geodetic to Earth-centered Cartesian transform and the line-of-sight
// test against the reference ellipsoid.
package geo

import "math"

// WGS84 reference ellipsoid, kilometers.
const (
	WGS84A = 6378.137        // semi-major axis
	WGS84B = 6356.7523142452 // semi-minor axis

	wgs84F    = 1 - WGS84B/WGS84A    // flattening
	wgs84Ecc2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Cartesian is an Earth-centered, Earth-fixed position in kilometers.
type Cartesian struct {
	X, Y, Z float64
}

// Sub returns c - o.
func (c Cartesian) Sub(o Cartesian) Cartesian {
	return Cartesian{c.X - o.X, c.Y - o.Y, c.Z - o.Z}
}

// Dot is the scalar product.
func (c Cartesian) Dot(o Cartesian) float64 {
	return c.X*o.X + c.Y*o.Y + c.Z*o.Z
}

// Norm is the Euclidean length.
func (c Cartesian) Norm() float64 {
	return math.Sqrt(c.Dot(c))
}

// ToCartesian converts geodetic latitude/longitude (degrees) and altitude
// (meters above the ellipsoid) to ECEF kilometers.
func ToCartesian(latDeg, lonDeg, altM float64) Cartesian {
	alt := altM / 1000
	phi := latDeg * math.Pi / 180
	lam := lonDeg * math.Pi / 180

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	sinLam, cosLam := math.Sin(lam), math.Cos(lam)

	// Radius of curvature in the prime vertical.
	n := WGS84A / math.Sqrt(1-wgs84Ecc2*sinPhi*sinPhi)

	return Cartesian{
		X: (alt + n) * cosPhi * cosLam,
		Y: (alt + n) * cosPhi * sinLam,
		Z: (alt + n*(1-wgs84Ecc2)) * sinPhi,
	}
}
