package trajectory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/isstracker/internal/kinematics"
	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/realtime"
)

// UnknownLocation is reported whenever reverse geocoding fails.
const UnknownLocation = "Unknown Location"

// ErrInvalidRange is returned for a negative offset or limit.
var ErrInvalidRange = errors.New("offset and limit must be non-negative")

// Source supplies the current dataset. *Cache implements it.
type Source interface {
	Get(ctx context.Context) oem.Dataset
	Refresh(ctx context.Context) (oem.Dataset, error)
}

// Geocoder resolves latitude/longitude in degrees to a place name.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// PositionFeed reports the station's current ground position.
type PositionFeed interface {
	Current(ctx context.Context) (realtime.Position, error)
}

// Speed is the instantaneous speed at one epoch.
type Speed struct {
	Epoch    string  `json:"epoch"`
	SpeedKmS float64 `json:"speed_km_s"`
}

// Location is the ground point beneath the station at one epoch.
type Location struct {
	Epoch       string  `json:"epoch"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	AltitudeKm  float64 `json:"altitude_km"`
	Geoposition string  `json:"geoposition"`
}

// CurrentState is the real-time position with its resolved place name.
type CurrentState struct {
	Timestamp   int64   `json:"timestamp"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Geoposition string  `json:"geoposition"`
}

// Service answers trajectory queries on behalf of the HTTP layer.
type Service struct {
	source   Source
	geocoder Geocoder
	feed     PositionFeed
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(source Source, geocoder Geocoder, feed PositionFeed, logger *slog.Logger) *Service {
	return &Service{
		source:   source,
		geocoder: geocoder,
		feed:     feed,
		logger:   logger,
	}
}

// Dataset returns the current dataset.
func (s *Service) Dataset(ctx context.Context) oem.Dataset {
	return s.source.Get(ctx)
}

// Refresh re-fetches the feed and replaces the cached dataset.
func (s *Service) Refresh(ctx context.Context) (oem.Dataset, error) {
	return s.source.Refresh(ctx)
}

// ListEpochs returns the state vectors in [offset, offset+limit), clipped to
// the dataset. A limit of 0 means no limit.
func (s *Service) ListEpochs(ctx context.Context, offset, limit int) ([]oem.StateVector, error) {
	if offset < 0 || limit < 0 {
		return nil, ErrInvalidRange
	}
	svs := s.source.Get(ctx).StateVectors
	if offset >= len(svs) {
		return []oem.StateVector{}, nil
	}
	end := len(svs)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return svs[offset:end], nil
}

// GetEpoch returns the state vector with exactly the given epoch string.
func (s *Service) GetEpoch(ctx context.Context, epoch string) (oem.StateVector, error) {
	return FindEpoch(s.source.Get(ctx).StateVectors, epoch)
}

// GetEpochSpeed returns the speed of the state vector at epoch.
func (s *Service) GetEpochSpeed(ctx context.Context, epoch string) (Speed, error) {
	sv, err := s.GetEpoch(ctx, epoch)
	if err != nil {
		return Speed{}, err
	}
	v, err := kinematics.Speed(sv.XDot, sv.YDot, sv.ZDot)
	if err != nil {
		return Speed{}, fmt.Errorf("epoch %s: %w", epoch, err)
	}
	return Speed{Epoch: sv.Epoch, SpeedKmS: v}, nil
}

// GetEpochLocation returns the ground point and place name beneath the
// station at epoch. Geocoding failures degrade to UnknownLocation.
func (s *Service) GetEpochLocation(ctx context.Context, epoch string) (Location, error) {
	sv, err := s.GetEpoch(ctx, epoch)
	if err != nil {
		return Location{}, err
	}
	g, err := kinematics.GroundPoint(sv.Position(), sv.Time)
	if err != nil {
		return Location{}, fmt.Errorf("epoch %s: %w", epoch, err)
	}
	return Location{
		Epoch:       sv.Epoch,
		Latitude:    g.LatitudeDeg,
		Longitude:   g.LongitudeDeg,
		AltitudeKm:  g.AltitudeKm,
		Geoposition: s.placeName(ctx, g.LatitudeDeg, g.LongitudeDeg),
	}, nil
}

// GetCurrentState reads the real-time position feed.
func (s *Service) GetCurrentState(ctx context.Context) (CurrentState, error) {
	pos, err := s.feed.Current(ctx)
	if err != nil {
		return CurrentState{}, err
	}
	return CurrentState{
		Timestamp:   pos.Timestamp,
		Latitude:    pos.Latitude,
		Longitude:   pos.Longitude,
		Geoposition: s.placeName(ctx, pos.Latitude, pos.Longitude),
	}, nil
}

// Closest returns the state vector nearest in time to target.
func (s *Service) Closest(ctx context.Context, target time.Time) (oem.StateVector, error) {
	return FindClosest(s.source.Get(ctx).StateVectors, target)
}

func (s *Service) placeName(ctx context.Context, lat, lon float64) string {
	if s.geocoder == nil {
		return UnknownLocation
	}
	name, err := s.geocoder.Reverse(ctx, lat, lon)
	if err != nil || name == "" {
		metrics.IncGeocodeFailures()
		s.logger.Warn("reverse geocoding failed", "lat", lat, "lon", lon, "error", err)
		return UnknownLocation
	}
	return name
}
