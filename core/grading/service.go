package grading

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/trezcool/masomo-grading/core"
)

var (
	// errors
	ErrNotFound         = errors.New("not found")
	ErrInvalidQuarter   = errors.New("invalid quarter: expected one of Q1, Q2, Q3, Q4 (or 1-4)")
	ErrMalformedPayload = errors.New("malformed grade payload")

	nowFunc = time.Now // mockable
)

type (
	// Repository is the data-access contract of the grading core.
	// Get* methods return ErrNotFound when nothing matches.
	Repository interface {
		CreateSchoolYear(ctx context.Context, sy SchoolYear) (SchoolYear, error)
		QuerySchoolYears(ctx context.Context, ids ...int64) ([]SchoolYear, error)
		CreateClass(ctx context.Context, class Class) (Class, error)
		GetClass(ctx context.Context, id int64) (Class, error)
		CreateAcademicPeriod(ctx context.Context, period AcademicPeriod) (AcademicPeriod, error)
		// QueryAcademicPeriods returns the periods of a school year ordered by start date.
		// An empty periodType matches every type.
		QueryAcademicPeriods(ctx context.Context, schoolYearID int64, periodType string) ([]AcademicPeriod, error)

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, studentID, classID int64) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)

		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		CreateGroupAssignment(ctx context.Context, a GroupAssignment) (GroupAssignment, error)
		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		CreateGroupGrade(ctx context.Context, g GroupGrade) (GroupGrade, error)
		GetGrade(ctx context.Context, id int64) (Grade, error)

		// QueryQuarterWork returns the student's non-voided individual grades on non-voided
		// assignments of the class and school year whose quarter is one of quarterLabels.
		QueryQuarterWork(ctx context.Context, studentID, classID, schoolYearID int64, quarterLabels []string) ([]GradedWork, error)
		// QueryQuarterGroupWork is QueryQuarterWork for group grades.
		QueryQuarterGroupWork(ctx context.Context, studentID, classID, schoolYearID int64, quarterLabels []string) ([]GradedWork, error)
		// QueryGradesForVoiding returns every non-voided individual grade (of a school year if schoolYearID > 0).
		QueryGradesForVoiding(ctx context.Context, schoolYearID int64) ([]GradeForVoiding, error)
		VoidGrade(ctx context.Context, gradeID int64, voiding Voiding) error

		GetQuarterGrade(ctx context.Context, key QuarterKey) (QuarterGrade, error)
		QueryQuarterGrades(ctx context.Context, filter QuarterGradeFilter) ([]QuarterGrade, error)
		// UpsertQuarterGrade inserts the entry or overwrites the one with the same QuarterKey,
		// unless that one was calculated later, in which case the stored entry is returned.
		UpsertQuarterGrade(ctx context.Context, qg QuarterGrade) (QuarterGrade, error)
		DeleteQuarterGrade(ctx context.Context, key QuarterKey) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
		conf   core.GradingConfig
		flight singleflight.Group
	}
)

func NewService(repo Repository, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		conf:   conf.Grading,
	}
}

func (svc *Service) today() time.Time {
	return core.Date(nowFunc().UTC())
}
