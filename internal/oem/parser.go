package oem

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/star/isstracker/internal/metrics"
)

// ErrMalformedDocument is returned when the feed is not well-formed XML.
var ErrMalformedDocument = errors.New("malformed OEM document")

// The feed nests records as ndm -> oem -> body -> segment -> data -> stateVector.
// Pointer fields let Parse tell a missing level apart from an empty one.
type ndmDocument struct {
	XMLName xml.Name
	OEM     *oemMessage `xml:"oem"`
}

type oemMessage struct {
	Body *oemBody `xml:"body"`
}

type oemBody struct {
	Segments []oemSegment `xml:"segment"`
}

type oemSegment struct {
	Data *oemData `xml:"data"`
}

type oemData struct {
	StateVectors []rawStateVector `xml:"stateVector"`
}

type rawStateVector struct {
	Epoch string   `xml:"EPOCH"`
	X     rawValue `xml:"X"`
	Y     rawValue `xml:"Y"`
	Z     rawValue `xml:"Z"`
	XDot  rawValue `xml:"X_DOT"`
	YDot  rawValue `xml:"Y_DOT"`
	ZDot  rawValue `xml:"Z_DOT"`
}

// rawValue is a numeric element with a units attribute, e.g. <X units="km">1.0</X>.
type rawValue struct {
	Units string `xml:"units,attr"`
	Text  string `xml:",chardata"`
}

// Parse reads an OEM XML document from r and returns its state vectors in
// document order. A document missing any level of the expected hierarchy
// yields no records and a warning; records with an unparseable epoch or
// non-numeric field are skipped with a warning.
func Parse(r io.Reader, logger *slog.Logger) ([]StateVector, error) {
	var doc ndmDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	if doc.XMLName.Local != "ndm" {
		logger.Warn("OEM document has unexpected root", "level", "ndm", "root", doc.XMLName.Local)
		return []StateVector{}, nil
	}
	if doc.OEM == nil {
		return missingLevel(logger, "oem"), nil
	}
	if doc.OEM.Body == nil {
		return missingLevel(logger, "body"), nil
	}
	if len(doc.OEM.Body.Segments) == 0 {
		return missingLevel(logger, "segment"), nil
	}

	svs := []StateVector{}
	sawData := false
	for i, seg := range doc.OEM.Body.Segments {
		if seg.Data == nil {
			logger.Warn("OEM segment has no data block", "segment", i)
			continue
		}
		sawData = true
		for j, raw := range seg.Data.StateVectors {
			sv, err := raw.normalize()
			if err != nil {
				logger.Warn("skipping malformed state vector",
					"segment", i,
					"index", j,
					"epoch", raw.Epoch,
					"error", err,
				)
				metrics.IncRecordsSkipped()
				continue
			}
			svs = append(svs, sv)
		}
	}
	if !sawData {
		return missingLevel(logger, "data"), nil
	}

	return svs, nil
}

func missingLevel(logger *slog.Logger, level string) []StateVector {
	logger.Warn("OEM document is missing an expected level, treating as empty", "level", level)
	return []StateVector{}
}

func (raw rawStateVector) normalize() (StateVector, error) {
	epoch := strings.TrimSpace(raw.Epoch)
	t, err := ParseEpoch(epoch)
	if err != nil {
		return StateVector{}, err
	}

	sv := StateVector{Epoch: epoch, Time: t}
	fields := []struct {
		name string
		raw  rawValue
		dst  *float64
	}{
		{"X", raw.X, &sv.X},
		{"Y", raw.Y, &sv.Y},
		{"Z", raw.Z, &sv.Z},
		{"X_DOT", raw.XDot, &sv.XDot},
		{"Y_DOT", raw.YDot, &sv.YDot},
		{"Z_DOT", raw.ZDot, &sv.ZDot},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw.Text), 64)
		if err != nil {
			return StateVector{}, fmt.Errorf("field %s: %w", f.name, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return StateVector{}, fmt.Errorf("field %s: non-finite value %q", f.name, f.raw.Text)
		}
		*f.dst = v
	}
	return sv, nil
}
