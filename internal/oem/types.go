package oem

import (
	"encoding/json"
	"time"
)

// StateVector is one sample of the ISS trajectory: position (km) and velocity
// (km/s) in the J2000 Earth-centered inertial frame at a single epoch.
type StateVector struct {
	Epoch string    `json:"epoch"`
	Time  time.Time `json:"-"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Z     float64   `json:"z"`
	XDot  float64   `json:"x_dot"`
	YDot  float64   `json:"y_dot"`
	ZDot  float64   `json:"z_dot"`
}

// Position returns the position components in km.
func (sv StateVector) Position() [3]float64 {
	return [3]float64{sv.X, sv.Y, sv.Z}
}

// Velocity returns the velocity components in km/s.
func (sv StateVector) Velocity() [3]float64 {
	return [3]float64{sv.XDot, sv.YDot, sv.ZDot}
}

// UnmarshalJSON decodes a state vector and re-derives Time from Epoch, so a
// decoded vector is always comparable by time.
func (sv *StateVector) UnmarshalJSON(data []byte) error {
	type plain StateVector
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	t, err := ParseEpoch(p.Epoch)
	if err != nil {
		return err
	}
	p.Time = t
	*sv = StateVector(p)
	return nil
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is one complete, normalized copy of the trajectory feed.
// StateVectors keeps feed order and is never nil; an empty slice means no data
// is currently available.
type Dataset struct {
	Source       string        `json:"source"`
	FetchedAt    time.Time     `json:"fetched_at"`
	StateVectors []StateVector `json:"state_vectors"`
}

// NewDataset builds a Dataset, normalizing a nil slice to an empty one.
func NewDataset(source string, fetchedAt time.Time, svs []StateVector) Dataset {
	if svs == nil {
		svs = []StateVector{}
	}
	return Dataset{
		Source:       source,
		FetchedAt:    fetchedAt,
		StateVectors: svs,
	}
}

// Empty returns a dataset with no state vectors.
func Empty() Dataset {
	return NewDataset("", time.Time{}, nil)
}

// Len returns the number of state vectors.
func (d Dataset) Len() int {
	return len(d.StateVectors)
}

// EpochRange returns the earliest and latest epoch in the dataset. The zero
// range is returned for an empty dataset.
func (d Dataset) EpochRange() EpochRange {
	if len(d.StateVectors) == 0 {
		return EpochRange{}
	}
	r := EpochRange{Min: d.StateVectors[0].Time, Max: d.StateVectors[0].Time}
	for _, sv := range d.StateVectors[1:] {
		if sv.Time.Before(r.Min) {
			r.Min = sv.Time
		}
		if sv.Time.After(r.Max) {
			r.Max = sv.Time
		}
	}
	return r
}
