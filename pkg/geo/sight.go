package geo

import "math"

const (
	// Points closer than this are treated as co-located, with no delay.
	coLocatedKm = 5.0

	// Speed of light in kilometers per millisecond.
	lightKmPerMs = 299792.458 / 1000
)

// Outcome is the result of a line-of-sight evaluation.
type Outcome struct {
	Blocked bool
	DelayMs float64 // one-way propagation delay; zero when Blocked
}

// Clear is an unobstructed link with the given delay.
func Clear(delayMs float64) Outcome { return Outcome{DelayMs: delayMs} }

// Obstructed is a link crossing the reference ellipsoid.
var Obstructed = Outcome{Blocked: true}

// LineOfSight tests whether the segment p1-p2 crosses the WGS84 ellipsoid.
// Both points are scaled by the semi-axes so the ellipsoid becomes the unit
// sphere, and the segment p(t) = s2 + t(s1-s2), t in [0,1], is intersected
// with it. A root exactly at an endpoint counts as obstruction.
func LineOfSight(p1, p2 Cartesian) Outcome {
	dist := p1.Sub(p2).Norm()
	if dist < coLocatedKm {
		return Clear(0)
	}
	delay := dist / lightKmPerMs

	s1, s2 := scaled(p1), scaled(p2)
	s12 := s1.Sub(s2)
	a := s12.Dot(s12)
	b := 2 * s12.Dot(s2)
	c := s2.Dot(s2) - 1

	disc := b*b - 4*a*c
	if disc < 0 {
		return Clear(delay)
	}

	// Numerically stable roots: t1 = q/a, t2 = c/q.
	q := -(b + sign(b)*math.Sqrt(disc)) / 2
	if q == 0 {
		// b == 0: t1 = 0, so the segment touches the ellipsoid at p2.
		return Obstructed
	}
	t1, t2 := q/a, c/q
	if outsideSegment(t1) && outsideSegment(t2) {
		return Clear(delay)
	}
	return Obstructed
}

func scaled(p Cartesian) Cartesian {
	return Cartesian{p.X / WGS84A, p.Y / WGS84A, p.Z / WGS84B}
}

func outsideSegment(t float64) bool {
	return t < 0 || t > 1
}

func sign(v float64) float64 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
