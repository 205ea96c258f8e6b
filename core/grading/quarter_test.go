package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuarter(t *testing.T) {
	tests := []struct {
		label   string
		want    string
		wantErr error
	}{
		{label: "Q1", want: "Q1"},
		{label: "1", want: "Q1"},
		{label: "q2", want: "Q2"},
		{label: " Q3 ", want: "Q3"},
		{label: "Quarter 4", want: "Q4"},
		{label: "", wantErr: ErrInvalidQuarter},
		{label: "Q5", wantErr: ErrInvalidQuarter},
		{label: "0", wantErr: ErrInvalidQuarter},
		{label: "Q12", wantErr: ErrInvalidQuarter},
		{label: "S1", wantErr: ErrInvalidQuarter},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := NormalizeQuarter(tt.label)
			if err != tt.wantErr {
				t.Errorf("NormalizeQuarter() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeQuarter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuarterLabels(t *testing.T) {
	for _, label := range []string{"Q1", "1", "quarter 1"} {
		labels, err := QuarterLabels(label)
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{"Q1", "1"}, labels)
	}

	_, err := QuarterLabels("Q9")
	assert.Equal(t, ErrInvalidQuarter, err)
}

func TestSameQuarter(t *testing.T) {
	assert.True(t, SameQuarter("Q2", "2"))
	assert.True(t, SameQuarter("Quarter 2", "q2"))
	assert.False(t, SameQuarter("Q2", "Q3"))
	assert.False(t, SameQuarter("Q2", "nope"))
}

func TestFindQuarterPeriod(t *testing.T) {
	periods := []AcademicPeriod{
		{ID: 1, PeriodType: PeriodSemester, Name: "1"},
		{ID: 2, PeriodType: PeriodQuarter, Name: "Quarter 1"},
		{ID: 3, PeriodType: PeriodQuarter, Name: "Q2"},
	}

	p, ok := FindQuarterPeriod(periods, "1")
	assert.True(t, ok)
	assert.Equal(t, int64(2), p.ID)

	p, ok = FindQuarterPeriod(periods, "Q2")
	assert.True(t, ok)
	assert.Equal(t, int64(3), p.ID)

	_, ok = FindQuarterPeriod(periods, "Q3")
	assert.False(t, ok)
}
