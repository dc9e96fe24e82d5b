package geo

import (
	"math"
	"testing"
)

func TestToCartesian_Equator(t *testing.T) {
	p := ToCartesian(0, 0, 0)
	if p.X != WGS84A || p.Y != 0 || p.Z != 0 {
		t.Errorf("equator/prime meridian = %+v, want (%v, 0, 0)", p, WGS84A)
	}
}

func TestToCartesian_Pole(t *testing.T) {
	p := ToCartesian(90, 0, 0)
	if math.Abs(p.Z-WGS84B) > 1e-6 {
		t.Errorf("north pole z = %.9f km, want %.9f", p.Z, WGS84B)
	}
	if math.Abs(p.X) > 1e-6 || math.Abs(p.Y) > 1e-6 {
		t.Errorf("north pole x/y = %v/%v, want ~0", p.X, p.Y)
	}
}

func TestToCartesian_Altitude(t *testing.T) {
	base := ToCartesian(0, 45, 0).Norm()
	high := ToCartesian(0, 45, 100).Norm()
	if diff := high - base; math.Abs(diff-0.1) > 1e-9 {
		t.Errorf("100 m altitude moved the point by %.12f km, want 0.1", diff)
	}
}

func TestToCartesian_Deterministic(t *testing.T) {
	inputs := [][3]float64{
		{0, 0, 0},
		{47.3769, 8.5417, 408},
		{-33.8688, 151.2093, 58},
		{51.64, -179.9, 550000},
	}
	for _, in := range inputs {
		a := ToCartesian(in[0], in[1], in[2])
		b := ToCartesian(in[0], in[1], in[2])
		if a != b {
			t.Errorf("ToCartesian(%v) not reproducible: %+v vs %+v", in, a, b)
		}
	}
}

func TestLineOfSight(t *testing.T) {
	sat := func(lon float64) Cartesian { return ToCartesian(0, lon, 550000) }

	tests := []struct {
		name    string
		p1, p2  Cartesian
		blocked bool
		delayMs float64
	}{
		{
			name: "identical points",
			p1:   Cartesian{7000, 0, 0},
			p2:   Cartesian{7000, 0, 0},
		},
		{
			name: "co-located within 5 km",
			p1:   Cartesian{7000, 0, 0},
			p2:   Cartesian{7000, 4, 0},
		},
		{
			name:    "antipodal through the center",
			p1:      Cartesian{WGS84A, 0, 0},
			p2:      Cartesian{-WGS84A, 0, 0},
			blocked: true,
		},
		{
			// b == 0 with p2 deep inside the ellipsoid: both roots lie
			// outside [0,1], but a zero-sign q puts t1 at 0.
			name:    "short chord perpendicular to a buried endpoint",
			p1:      Cartesian{1000, 100, 0},
			p2:      Cartesian{1000, 0, 0},
			blocked: true,
		},
		{
			name:    "1000 km apart in clear space",
			p1:      Cartesian{7000, 0, 0},
			p2:      Cartesian{7000, 1000, 0},
			delayMs: 1000 / 299.792458,
		},
		{
			name:    "satellite overhead a station",
			p1:      ToCartesian(0, 0, 1000),
			p2:      sat(0),
			delayMs: 549 / 299.792458,
		},
		{
			name:    "neighbouring satellites",
			p1:      sat(0),
			p2:      sat(20),
			delayMs: sat(0).Sub(sat(20)).Norm() / 299.792458,
		},
		{
			name:    "satellites behind the horizon",
			p1:      sat(0),
			p2:      sat(50),
			blocked: true,
		},
		{
			name:    "opposite sides of the earth",
			p1:      sat(0),
			p2:      sat(180),
			blocked: true,
		},
		{
			name:    "tangent at an endpoint",
			p1:      Cartesian{WGS84A, 1000, 0},
			p2:      Cartesian{WGS84A, 0, 0},
			blocked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LineOfSight(tt.p1, tt.p2)
			if got.Blocked != tt.blocked {
				t.Fatalf("Blocked = %v, want %v (delay %.6f)", got.Blocked, tt.blocked, got.DelayMs)
			}
			if math.Abs(got.DelayMs-tt.delayMs) > 1e-6 {
				t.Errorf("DelayMs = %.9f, want %.9f", got.DelayMs, tt.delayMs)
			}
		})
	}
}

func TestLineOfSight_Symmetric(t *testing.T) {
	a := ToCartesian(10, 20, 550000)
	b := ToCartesian(-5, 35, 550000)
	ab, ba := LineOfSight(a, b), LineOfSight(b, a)
	if ab.Blocked != ba.Blocked || math.Abs(ab.DelayMs-ba.DelayMs) > 1e-12 {
		t.Errorf("asymmetric result: %+v vs %+v", ab, ba)
	}
}
