package trajectory

import (
	"errors"
	"testing"
	"time"

	"github.com/star/isstracker/internal/oem"
)

func TestFindClosest(t *testing.T) {
	noon := sv(t, "2025-069T12:00:00.000Z", 1, 0, 0, 1, 2, 3)
	one := sv(t, "2025-069T13:00:00.000Z", 2, 0, 0, 4, 5, 6)
	data := []oem.StateVector{noon, one}

	tests := []struct {
		name   string
		target time.Time
		want   string
	}{
		{"before first", time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC), noon.Epoch},
		{"nearer first", time.Date(2025, 3, 10, 12, 20, 0, 0, time.UTC), noon.Epoch},
		{"nearer second", time.Date(2025, 3, 10, 12, 40, 0, 0, time.UTC), one.Epoch},
		{"exact match", time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC), one.Epoch},
		{"after last", time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), one.Epoch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindClosest(data, tt.target)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Epoch != tt.want {
				t.Errorf("FindClosest = %s, want %s", got.Epoch, tt.want)
			}
		})
	}
}

// TestFindClosestTie verifies the first record wins when two are equidistant.
func TestFindClosestTie(t *testing.T) {
	noon := sv(t, "2025-069T12:00:00.000Z", 1, 0, 0, 0, 0, 0)
	one := sv(t, "2025-069T13:00:00.000Z", 2, 0, 0, 0, 0, 0)
	halfway := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)

	got, err := FindClosest([]oem.StateVector{noon, one}, halfway)
	if err != nil {
		t.Fatal(err)
	}
	if got.Epoch != noon.Epoch {
		t.Errorf("tie resolved to %s, want first record %s", got.Epoch, noon.Epoch)
	}

	got, err = FindClosest([]oem.StateVector{one, noon}, halfway)
	if err != nil {
		t.Fatal(err)
	}
	if got.Epoch != one.Epoch {
		t.Errorf("tie resolved to %s, want first record %s", got.Epoch, one.Epoch)
	}
}

// TestFindClosestUnsorted verifies the scan does not assume chronological order.
func TestFindClosestUnsorted(t *testing.T) {
	data := []oem.StateVector{
		sv(t, "2025-070T00:00:00.000Z", 0, 0, 0, 0, 0, 0),
		sv(t, "2025-069T06:00:00.000Z", 0, 0, 0, 0, 0, 0),
		sv(t, "2025-069T12:04:00.000Z", 0, 0, 0, 0, 0, 0),
		sv(t, "2025-069T09:00:00.000Z", 0, 0, 0, 0, 0, 0),
	}
	got, err := FindClosest(data, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if got.Epoch != "2025-069T12:04:00.000Z" {
		t.Errorf("FindClosest = %s", got.Epoch)
	}
}

func TestFindClosestEmpty(t *testing.T) {
	for _, data := range [][]oem.StateVector{nil, {}} {
		if _, err := FindClosest(data, time.Now()); !errors.Is(err, ErrEmptyDataset) {
			t.Errorf("err = %v, want ErrEmptyDataset", err)
		}
	}
}

func TestFindEpoch(t *testing.T) {
	data := sampleDataset(t).StateVectors

	got, err := FindEpoch(data, "2025-069T12:04:00.000Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.X != -5388.1 {
		t.Errorf("X = %v, want -5388.1", got.X)
	}

	_, err = FindEpoch(data, "2025-069T12:05:00.000Z")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
	if errors.Is(err, ErrEmptyDataset) {
		t.Error("not-found must be distinct from empty dataset")
	}
}
