package grading

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// GradePayload is the semi-structured content of a grade record.
// Nil fields were absent (or null) in the stored payload.
type GradePayload struct {
	PointsEarned *float64
	Percentage   *float64
	Score        *float64 // legacy; unit is ambiguous, see Resolve
}

type rawPayload struct {
	PointsEarned flexFloat `json:"points_earned"`
	Percentage   flexFloat `json:"percentage"`
	Score        flexFloat `json:"score"`
}

// flexFloat accepts a finite JSON number, a numeric string or null.
type flexFloat struct {
	val *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return errors.Wrapf(err, "parsing %q", s)
		}
		return f.set(v)
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return f.set(v)
}

func (f *flexFloat) set(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Wrapf(ErrMalformedPayload, "non-finite value %v", v)
	}
	f.val = &v
	return nil
}

// ParseGradePayload decodes a stored grade payload.
// Unknown keys (eg. a denormalized total_points) are ignored.
func ParseGradePayload(data []byte) (GradePayload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return GradePayload{}, errors.Wrap(ErrMalformedPayload, "empty payload")
	}
	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return GradePayload{}, errors.Wrap(ErrMalformedPayload, err.Error())
	}
	return GradePayload{
		PointsEarned: raw.PointsEarned.val,
		Percentage:   raw.Percentage.val,
		Score:        raw.Score.val,
	}, nil
}

// Resolve derives (points earned, total points) against the assignment's point total, which is
// always authoritative. ok is false when nothing usable is present.
//
// Derivation order: points_earned, then percentage, then the legacy score. A legacy score is
// read as a percentage when totalPoints is 100 and score <= 100, or when score > totalPoints;
// otherwise it is read as points. Historical records whose score was raw points on a
// 100 point assignment are indistinguishable from percentages and are read as percentages.
func (p GradePayload) Resolve(totalPoints float64) (earned, total float64, ok bool) {
	switch {
	case p.PointsEarned != nil:
		return *p.PointsEarned, totalPoints, true
	case p.Percentage != nil:
		return *p.Percentage / 100 * totalPoints, totalPoints, true
	case p.Score != nil:
		score := *p.Score
		if (totalPoints == 100 && score <= 100) || score > totalPoints {
			return score / 100 * totalPoints, totalPoints, true
		}
		return score, totalPoints, true
	}
	return 0, 0, false
}
