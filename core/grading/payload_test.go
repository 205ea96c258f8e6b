package grading

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestParseGradePayload(t *testing.T) {
	tests := []struct {
		name             string
		data             string
		wantPointsEarned interface{}
		wantPercentage   interface{}
		wantScore        interface{}
		wantErr          bool
	}{
		{name: "points", data: `{"points_earned": 45}`, wantPointsEarned: 45.0},
		{name: "percentage", data: `{"percentage": 90.5}`, wantPercentage: 90.5},
		{name: "legacy score", data: `{"score": 85}`, wantScore: 85.0},
		{name: "numeric strings", data: `{"points_earned": " 12.5 ", "score": "7"}`, wantPointsEarned: 12.5, wantScore: 7.0},
		{name: "nulls", data: `{"points_earned": null, "percentage": 80}`, wantPercentage: 80.0},
		{name: "extra keys", data: `{"points_earned": 3, "total_points": 10, "comment": "ok"}`, wantPointsEarned: 3.0},
		{name: "empty object", data: `{}`},
		{name: "empty", data: ``, wantErr: true},
		{name: "not json", data: `lol`, wantErr: true},
		{name: "not an object", data: `[1, 2]`, wantErr: true},
		{name: "non numeric string", data: `{"score": "A+"}`, wantErr: true},
		{name: "bool", data: `{"percentage": true}`, wantErr: true},
		{name: "NaN", data: `{"points_earned": "NaN"}`, wantErr: true},
		{name: "infinity", data: `{"percentage": "Infinity"}`, wantErr: true},
		{name: "negative inf", data: `{"score": "-Inf"}`, wantErr: true},
		{name: "out of range", data: `{"points_earned": "1e400"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGradePayload([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGradePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				assert.Equal(t, ErrMalformedPayload, errors.Cause(err))
				return
			}
			assertFloatPtr(t, tt.wantPointsEarned, got.PointsEarned)
			assertFloatPtr(t, tt.wantPercentage, got.Percentage)
			assertFloatPtr(t, tt.wantScore, got.Score)
		})
	}
}

func assertFloatPtr(t *testing.T, want interface{}, got *float64) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	if assert.NotNil(t, got) {
		assert.Equal(t, want, *got)
	}
}

func ptr(f float64) *float64 { return &f }

func TestGradePayload_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		payload     GradePayload
		totalPoints float64
		wantEarned  float64
		wantOk      bool
	}{
		{name: "points earned", payload: GradePayload{PointsEarned: ptr(45)}, totalPoints: 50, wantEarned: 45, wantOk: true},
		{name: "points win over percentage", payload: GradePayload{PointsEarned: ptr(10), Percentage: ptr(90)}, totalPoints: 50, wantEarned: 10, wantOk: true},
		{name: "percentage", payload: GradePayload{Percentage: ptr(80)}, totalPoints: 50, wantEarned: 40, wantOk: true},
		{name: "score on 100 points is a percentage", payload: GradePayload{Score: ptr(85)}, totalPoints: 100, wantEarned: 85, wantOk: true},
		{name: "score above total is a percentage", payload: GradePayload{Score: ptr(80)}, totalPoints: 50, wantEarned: 40, wantOk: true},
		{name: "score within total is points", payload: GradePayload{Score: ptr(40)}, totalPoints: 50, wantEarned: 40, wantOk: true},
		{name: "score on 200 points is points", payload: GradePayload{Score: ptr(150)}, totalPoints: 200, wantEarned: 150, wantOk: true},
		{name: "nothing usable", payload: GradePayload{}, totalPoints: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			earned, total, ok := tt.payload.Resolve(tt.totalPoints)
			assert.Equal(t, tt.wantOk, ok)
			if !ok {
				return
			}
			assert.InDelta(t, tt.wantEarned, earned, 1e-9)
			assert.Equal(t, tt.totalPoints, total)
		})
	}
}
