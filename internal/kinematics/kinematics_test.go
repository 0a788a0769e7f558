package kinematics

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestSpeed(t *testing.T) {
	tests := []struct {
		name       string
		vx, vy, vz float64
		want       float64
		tol        float64
	}{
		{"zero vector", 0, 0, 0, 0, 0},
		{"3-4-5", 3, 4, 0, 5, 0},
		{"negative component", -3, 4, 0, 5, 1e-12},
		{"fractional", 1.5, 2.0, 2.5, 3.5355, 0.001},
		{"typical ISS velocity", -4.8, 4.3, 4.2, math.Sqrt(4.8*4.8 + 4.3*4.3 + 4.2*4.2), 1e-12},
		{"far outside LEO", 3e5, -4e5, 0, 5e5, 1e-6},
		{"no overflow on huge components", 3e200, 4e200, 0, 5e200, 1e188},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Speed(tt.vx, tt.vy, tt.vz)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Speed(%v, %v, %v) = %v, want %v", tt.vx, tt.vy, tt.vz, got, tt.want)
			}
		})
	}
}

func TestSpeedInvalidVector(t *testing.T) {
	inputs := [][3]float64{
		{math.NaN(), 0, 0},
		{0, math.Inf(1), 0},
		{0, 0, math.Inf(-1)},
	}
	for _, in := range inputs {
		if _, err := Speed(in[0], in[1], in[2]); !errors.Is(err, ErrInvalidVector) {
			t.Errorf("Speed(%v) err = %v, want ErrInvalidVector", in, err)
		}
	}
}

// TestGroundPointRanges checks a 400 km orbit maps onto valid geodetic values.
func TestGroundPointRanges(t *testing.T) {
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	positions := [][3]float64{
		{6778, 0, 0},
		{0, -6778, 0},
		{-4000, 3000, 4500},
		{2000, 2000, -6200},
	}

	for _, pos := range positions {
		g, err := GroundPoint(pos, at)
		if err != nil {
			t.Fatalf("GroundPoint(%v): %v", pos, err)
		}
		if g.LatitudeDeg < -90 || g.LatitudeDeg > 90 {
			t.Errorf("GroundPoint(%v) latitude %v out of range", pos, g.LatitudeDeg)
		}
		if g.LongitudeDeg < -180 || g.LongitudeDeg >= 180 {
			t.Errorf("GroundPoint(%v) longitude %v out of range", pos, g.LongitudeDeg)
		}
		if g.AltitudeKm < 300 || g.AltitudeKm > 500 {
			t.Errorf("GroundPoint(%v) altitude %v km, want roughly 400", pos, g.AltitudeKm)
		}
	}
}

func TestGroundPointEquatorial(t *testing.T) {
	g, err := GroundPoint([3]float64{6778, 0, 0}, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(g.LatitudeDeg) > 1e-6 {
		t.Errorf("latitude = %v, want 0 for an equatorial position", g.LatitudeDeg)
	}
}

func TestGroundPointInvalid(t *testing.T) {
	_, err := GroundPoint([3]float64{math.NaN(), 0, 0}, time.Now())
	if !errors.Is(err, ErrInvalidVector) {
		t.Errorf("err = %v, want ErrInvalidVector", err)
	}
}

func TestWrapDegrees(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{190, -170},
		{-190, 170},
		{540, -180},
		{-720, 0},
	}
	for _, tt := range tests {
		if got := wrapDegrees(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("wrapDegrees(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
