package grading

import (
	"testing"
)

func TestLetterGrade(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{pct: 100, want: "A"},
		{pct: 95, want: "A"},
		{pct: 94.99, want: "A-"},
		{pct: 90, want: "A-"},
		{pct: 87, want: "B+"},
		{pct: 83.33, want: "B"},
		{pct: 80, want: "B-"},
		{pct: 77, want: "C+"},
		{pct: 73, want: "C"},
		{pct: 70, want: "C-"},
		{pct: 65, want: "D"},
		{pct: 64.99, want: "D"},
		{pct: 10, want: "D"},
		{pct: 0, want: "D"},
	}
	for _, tt := range tests {
		if got := LetterGrade(tt.pct); got != tt.want {
			t.Errorf("LetterGrade(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}

func TestSanitizeLetterGrade(t *testing.T) {
	for letter, want := range map[string]string{"F": "D", "D": "D", "B+": "B+", "": ""} {
		if got := SanitizeLetterGrade(letter); got != want {
			t.Errorf("SanitizeLetterGrade(%q) = %q, want %q", letter, got, want)
		}
	}
}
