package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/isstracker/internal/kinematics"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/realtime"
	"github.com/star/isstracker/internal/trajectory"
)

type handlers struct {
	svc    *trajectory.Service
	logger *slog.Logger
	now    func() time.Time
}

// refreshResponse summarizes the dataset stored by POST /refresh.
type refreshResponse struct {
	Source       string `json:"source"`
	FetchedAt    string `json:"fetched_at"`
	StateVectors int    `json:"state_vectors"`
	FirstEpoch   string `json:"first_epoch,omitempty"`
	LastEpoch    string `json:"last_epoch,omitempty"`
}

// GET /epochs?limit=&offset=
func (h *handlers) listEpochs(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	svs, err := h.svc.ListEpochs(r.Context(), offset, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svs)
}

// GET /epochs/closest?time=
func (h *handlers) closestEpoch(w http.ResponseWriter, r *http.Request) {
	target := h.now()
	if v := r.URL.Query().Get("time"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid time parameter, must be an OEM epoch or RFC 3339 timestamp")
			return
		}
		target = t
	}

	sv, err := h.svc.Closest(r.Context(), target)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

// GET /epochs/{epoch}
func (h *handlers) getEpoch(w http.ResponseWriter, r *http.Request) {
	sv, err := h.svc.GetEpoch(r.Context(), r.PathValue("epoch"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

// GET /epochs/{epoch}/speed
func (h *handlers) getEpochSpeed(w http.ResponseWriter, r *http.Request) {
	speed, err := h.svc.GetEpochSpeed(r.Context(), r.PathValue("epoch"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, speed)
}

// GET /epochs/{epoch}/location
func (h *handlers) getEpochLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.GetEpochLocation(r.Context(), r.PathValue("epoch"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// GET /now
func (h *handlers) currentState(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.GetCurrentState(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// POST /refresh
func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.Refresh(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := refreshResponse{
		Source:       ds.Source,
		FetchedAt:    ds.FetchedAt.UTC().Format(time.RFC3339),
		StateVectors: ds.Len(),
	}
	if n := ds.Len(); n > 0 {
		resp.FirstEpoch = ds.StateVectors[0].Epoch
		resp.LastEpoch = ds.StateVectors[n-1].Epoch
	}
	h.logger.Info("manual refresh complete", "state_vectors", resp.StateVectors)
	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps service errors to their HTTP status.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, trajectory.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "Epoch not found")
	case errors.Is(err, trajectory.ErrEmptyDataset):
		writeError(w, http.StatusNotFound, "no trajectory data")
	case errors.Is(err, trajectory.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, kinematics.ErrInvalidVector):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, oem.ErrTransport):
		h.logger.Warn("trajectory feed unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "trajectory feed unavailable")
	case errors.Is(err, realtime.ErrTransport), errors.Is(err, realtime.ErrInvalidResponse):
		h.logger.Warn("position feed unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Failed to retrieve real-time ISS position")
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// queryInt parses a non-negative integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s parameter, must be a non-negative integer", name)
	}
	return n, nil
}

// parseTime accepts an OEM epoch or an RFC 3339 timestamp.
func parseTime(s string) (time.Time, error) {
	if t, err := oem.ParseEpoch(s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// writeJSON encodes v before writing the header, so an unencodable value
// becomes a 500 rather than an empty body under a success status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"error": "internal error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
