// Package kinematics derives scalar quantities from trajectory state vectors:
// instantaneous speed and the geodetic point beneath the station.
package kinematics

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVector is returned when a component is NaN or infinite.
var ErrInvalidVector = errors.New("invalid vector")

// Speed returns the Euclidean norm of (vx, vy, vz). Any finite input is
// accepted, including magnitudes far outside low Earth orbit.
func Speed(vx, vy, vz float64) (float64, error) {
	if err := checkFinite(vx, vy, vz); err != nil {
		return 0, err
	}
	// Hypot avoids overflow in the intermediate squares.
	return math.Hypot(math.Hypot(vx, vy), vz), nil
}

func checkFinite(v ...float64) error {
	for i, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidVector, i, c)
		}
	}
	return nil
}
