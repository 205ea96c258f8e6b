package grading

import (
	"time"
)

// Assignment statuses
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	StatusVoided   = "Voided" // terminal; excluded from aggregation
)

// Academic period types
const (
	PeriodQuarter  = "quarter"
	PeriodSemester = "semester"
)

// DefaultTotalPoints is used for assignments without a point total.
const DefaultTotalPoints = 100.0

// Grade kinds
const (
	KindIndividual = "individual"
	KindGroup      = "group"
)

type SchoolYear struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
}

type Class struct {
	ID           int64  `json:"id"`
	SchoolYearID int64  `json:"school_year_id"`
	Name         string `json:"name"`
}

// Assignment is an individual assignment. GroupAssignment shares its shape.
type Assignment struct {
	ID           int64     `json:"id"`
	ClassID      int64     `json:"class_id"`
	SchoolYearID int64     `json:"school_year_id"`
	Name         string    `json:"name"`
	Quarter      string    `json:"quarter"`
	TotalPoints  float64   `json:"total_points"` // <= 0: unset
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Points returns the assignment's point total, DefaultTotalPoints if unset.
func (a Assignment) Points() float64 {
	if a.TotalPoints <= 0 {
		return DefaultTotalPoints
	}
	return a.TotalPoints
}

type GroupAssignment Assignment

// Voiding is the audit trail of a voided grade.
type Voiding struct {
	By     string    `json:"voided_by"`
	At     time.Time `json:"voided_at"` // UTC
	Reason string    `json:"voided_reason"`
}

// Grade is a student's grade for an Assignment (or a GroupAssignment for group grades).
// Data holds the raw JSON grade payload, see ParseGradePayload.
type Grade struct {
	ID           int64     `json:"id"`
	StudentID    int64     `json:"student_id"`
	AssignmentID int64     `json:"assignment_id"`
	Data         []byte    `json:"data"`
	IsVoided     bool      `json:"is_voided"`
	Voiding      *Voiding  `json:"voiding,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type GroupGrade Grade

type Enrollment struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"student_id"`
	ClassID    int64     `json:"class_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
	DroppedAt  time.Time `json:"dropped_at"` // zero: not dropped
	IsActive   bool      `json:"is_active"`
}

func (e Enrollment) IsDropped() bool {
	return !e.DroppedAt.IsZero()
}

type AcademicPeriod struct {
	ID           int64     `json:"id"`
	SchoolYearID int64     `json:"school_year_id"`
	PeriodType   string    `json:"period_type"`
	Name         string    `json:"name"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// QuarterKey identifies one student's grade in one class for one quarter of a school year.
type QuarterKey struct {
	StudentID    int64  `json:"student_id" yaml:"student_id" query:"student_id" validate:"required,gt=0"`
	ClassID      int64  `json:"class_id" yaml:"class_id" query:"class_id" validate:"required,gt=0"`
	SchoolYearID int64  `json:"school_year_id" yaml:"school_year_id" query:"school_year_id" validate:"required,gt=0"`
	Quarter      string `json:"quarter" yaml:"quarter" query:"quarter" validate:"required,quarter"`
}

// Normalize returns a copy of the key with its quarter in canonical form.
func (k QuarterKey) Normalize() (QuarterKey, error) {
	q, err := NormalizeQuarter(k.Quarter)
	if err != nil {
		return QuarterKey{}, err
	}
	k.Quarter = q
	return k, nil
}

// QuarterResult is the outcome of aggregating a student's grades for a quarter.
type QuarterResult struct {
	LetterGrade      string  `json:"letter_grade" yaml:"letter_grade"`
	Percentage       float64 `json:"percentage" yaml:"percentage"`
	AssignmentsCount int     `json:"assignments_count" yaml:"assignments_count"`
}

// QuarterGrade is a cached QuarterResult.
type QuarterGrade struct {
	ID             int64 `json:"id" yaml:"id"`
	QuarterKey     `yaml:",inline"`
	QuarterResult  `yaml:",inline"`
	LastCalculated time.Time `json:"last_calculated" yaml:"last_calculated"` // UTC
}

// GradedWork is a non-voided grade joined with the point total of its (non-voided) assignment.
type GradedWork struct {
	GradeID      int64
	Kind         string // KindIndividual | KindGroup
	AssignmentID int64
	TotalPoints  float64
	Data         []byte
}

// GradeForVoiding is a non-voided individual grade with what the late-enrollment rule needs.
type GradeForVoiding struct {
	Grade      Grade
	Assignment Assignment
}

type (
	EnrollmentFilter struct {
		StudentID    int64
		ClassID      int64
		SchoolYearID int64
		ActiveOnly   bool
	}

	QuarterGradeFilter struct {
		StudentID    int64
		SchoolYearID int64
	}
)
