package kinematics

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Geodetic is a point on (or above) the WGS-84 ellipsoid.
type Geodetic struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	AltitudeKm   float64
}

// GroundPoint converts an inertial position (km) at time t to the geodetic
// point beneath it. The inertial frame is rotated by Greenwich mean sidereal
// time only; precession between J2000 and the epoch of date is ignored, which
// shifts longitude by a fraction of a degree. Good enough for naming the
// country or ocean under the station.
func GroundPoint(pos [3]float64, t time.Time) (Geodetic, error) {
	if err := checkFinite(pos[0], pos[1], pos[2]); err != nil {
		return Geodetic{}, err
	}

	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec))

	alt, _, ll := satellite.ECIToLLA(satellite.Vector3{X: pos[0], Y: pos[1], Z: pos[2]}, gmst)

	return Geodetic{
		LatitudeDeg:  ll.Latitude * 180 / math.Pi,
		LongitudeDeg: wrapDegrees(ll.Longitude * 180 / math.Pi),
		AltitudeKm:   alt,
	}, nil
}

// wrapDegrees maps an angle onto [-180, 180).
func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}
