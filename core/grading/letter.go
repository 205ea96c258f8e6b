package grading

import "math"

// letter thresholds, highest first. D is the floor: no F is ever assigned.
var letterThresholds = []struct {
	min    float64
	letter string
}{
	{95, "A"},
	{90, "A-"},
	{87, "B+"},
	{83, "B"},
	{80, "B-"},
	{77, "C+"},
	{73, "C"},
	{70, "C-"},
	{65, "D"},
}

const floorLetter = "D"

// LetterGrade maps a percentage to a letter grade.
func LetterGrade(pct float64) string {
	for _, t := range letterThresholds {
		if pct >= t.min {
			return t.letter
		}
	}
	return floorLetter
}

// SanitizeLetterGrade converts a stray "F" (eg. from imported data) to the "D" floor.
func SanitizeLetterGrade(letter string) string {
	if letter == "F" {
		return floorLetter
	}
	return letter
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
