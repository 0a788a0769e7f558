package trajectory

import (
	"errors"
	"time"

	"github.com/star/isstracker/internal/oem"
)

var (
	// ErrEmptyDataset is returned by a nearest-time query over no records.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrRecordNotFound is returned when no record has the requested epoch.
	ErrRecordNotFound = errors.New("epoch not found")
)

// FindClosest returns the state vector whose epoch is nearest to target.
// Every record is scanned, so the dataset need not be sorted; on an exact tie
// the record that comes first wins.
func FindClosest(svs []oem.StateVector, target time.Time) (oem.StateVector, error) {
	if len(svs) == 0 {
		return oem.StateVector{}, ErrEmptyDataset
	}

	best := 0
	bestDist := absDuration(svs[0].Time.Sub(target))
	for i := 1; i < len(svs); i++ {
		if d := absDuration(svs[i].Time.Sub(target)); d < bestDist {
			best, bestDist = i, d
		}
	}
	return svs[best], nil
}

// FindEpoch returns the first state vector whose epoch string equals epoch.
func FindEpoch(svs []oem.StateVector, epoch string) (oem.StateVector, error) {
	for _, sv := range svs {
		if sv.Epoch == epoch {
			return sv, nil
		}
	}
	return oem.StateVector{}, ErrRecordNotFound
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
