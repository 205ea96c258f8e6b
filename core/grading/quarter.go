package grading

import (
	"strings"

	"github.com/trezcool/masomo-grading/core"
)

// Quarters are the four grading periods of a school year, in their canonical form.
var Quarters = []string{"Q1", "Q2", "Q3", "Q4"}

// NormalizeQuarter returns the canonical form ("Q1".."Q4") of a quarter label.
// Labels are stored both as "Q1" and as "1" across the dataset; period names may also read
// "Quarter 1". Matching is case and whitespace insensitive.
func NormalizeQuarter(label string) (string, error) {
	s := strings.ReplaceAll(core.CleanString(label, true /* lower */), " ", "")
	s = strings.TrimPrefix(s, "quarter")
	s = strings.TrimPrefix(s, "q")
	if len(s) == 1 && s[0] >= '1' && s[0] <= '4' {
		return "Q" + s, nil
	}
	return "", ErrInvalidQuarter
}

// QuarterLabels returns every stored spelling of a quarter: the canonical label and the bare number.
// It must be used wherever assignments are matched by quarter.
func QuarterLabels(label string) ([]string, error) {
	q, err := NormalizeQuarter(label)
	if err != nil {
		return nil, err
	}
	return []string{q, q[1:]}, nil
}

// SameQuarter reports whether two labels name the same quarter.
func SameQuarter(a, b string) bool {
	qa, err := NormalizeQuarter(a)
	if err != nil {
		return false
	}
	qb, err := NormalizeQuarter(b)
	if err != nil {
		return false
	}
	return qa == qb
}
