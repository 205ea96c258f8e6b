package grading

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core"
)

// FindQuarterPeriod returns the quarter period named by label, whatever spelling either side uses.
func FindQuarterPeriod(periods []AcademicPeriod, label string) (AcademicPeriod, bool) {
	for _, p := range periods {
		if p.PeriodType == PeriodQuarter && SameQuarter(p.Name, label) {
			return p, true
		}
	}
	return AcademicPeriod{}, false
}

func (svc *Service) quarterPeriods(ctx context.Context, schoolYearID int64) ([]AcademicPeriod, error) {
	periods, err := svc.repo.QueryAcademicPeriods(ctx, schoolYearID, PeriodQuarter)
	if err != nil {
		return nil, errors.Wrap(err, "querying academic periods")
	}
	return periods, nil
}

// ShouldCalculateQuarterGrade reports whether the enrollment may hold a grade for the period:
// the period must exist and have started, and the student must not have dropped the class
// before it started.
// Students who enrolled after the period ended are still eligible; the aggregator only
// yields a grade for them if they have usable grades.
func ShouldCalculateQuarterGrade(enr Enrollment, period *AcademicPeriod, today time.Time) bool {
	if period == nil {
		return false
	}
	if core.Date(today).Before(core.Date(period.StartDate)) {
		return false
	}
	return !droppedBeforeStart(enr, *period)
}

func droppedBeforeStart(enr Enrollment, period AcademicPeriod) bool {
	return enr.IsDropped() && core.Date(enr.DroppedAt).Before(core.Date(period.StartDate))
}

func enrolledAfterEnd(enr Enrollment, period AcademicPeriod) bool {
	return core.Date(enr.EnrolledAt).After(core.Date(period.EndDate))
}
