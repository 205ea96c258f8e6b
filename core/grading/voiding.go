package grading

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core"
)

// IsLateEnrollment reports whether the enrollment date falls within the final windowDays days
// of the period, or after its end.
func IsLateEnrollment(enr Enrollment, period AcademicPeriod, windowDays int) bool {
	return core.DaysBetween(enr.EnrolledAt, period.EndDate) <= windowDays
}

// ShouldVoidAssignment reports whether the student's grade for the assignment must be voided:
// the student enrolled too close to the end of the quarter the assignment belongs to.
// Assignments whose quarter has no academic period are never voided.
func ShouldVoidAssignment(assignment Assignment, enr Enrollment, periods []AcademicPeriod, windowDays int) bool {
	period, ok := FindQuarterPeriod(periods, assignment.Quarter)
	if !ok {
		return false
	}
	return IsLateEnrollment(enr, period, windowDays)
}

// ShouldVoidAssignmentForStudent applies ShouldVoidAssignment with the periods of the
// assignment's school year. When enr is nil, the student's enrollment in the assignment's class
// is looked up; a student who is not enrolled is never voided.
func (svc *Service) ShouldVoidAssignmentForStudent(ctx context.Context, studentID int64, assignment Assignment, enr *Enrollment) (bool, error) {
	if enr == nil {
		e, err := svc.repo.GetEnrollment(ctx, studentID, assignment.ClassID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return false, nil
			}
			return false, errors.Wrap(err, "getting enrollment")
		}
		enr = &e
	}
	periods, err := svc.quarterPeriods(ctx, assignment.SchoolYearID)
	if err != nil {
		return false, err
	}
	return ShouldVoidAssignment(assignment, *enr, periods, svc.conf.LateEnrollmentDays), nil
}

type VoidOptions struct {
	SchoolYearID int64  `json:"school_year_id" validate:"gte=0"` // 0: every school year
	DryRun       bool   `json:"dry_run"`
	VoidedBy     string `json:"-"`
}

type VoidStats struct {
	RunID    string       `json:"run_id" yaml:"run_id"`
	DryRun   bool         `json:"dry_run" yaml:"dry_run"`
	Checked  int          `json:"checked" yaml:"checked"`
	Voided   int          `json:"voided" yaml:"voided"`
	Errors   int          `json:"errors" yaml:"errors"`
	Affected []QuarterKey `json:"affected" yaml:"affected"`
}

// VoidLateEnrollmentGrades voids every non-voided grade whose student enrolled too late in the
// assignment's quarter, then force-refreshes the cached quarter grades it affected.
// It is a maintenance sweep: grades can be entered first and voided retroactively here.
// With DryRun set nothing is written and Voided counts the grades that would be voided.
func (svc *Service) VoidLateEnrollmentGrades(ctx context.Context, opts VoidOptions) (VoidStats, error) {
	stats := VoidStats{
		RunID:    uuid.NewString(),
		DryRun:   opts.DryRun,
		Affected: make([]QuarterKey, 0),
	}
	if opts.VoidedBy == "" {
		opts.VoidedBy = svc.conf.SystemUser
	}

	grades, err := svc.repo.QueryGradesForVoiding(ctx, opts.SchoolYearID)
	if err != nil {
		return stats, errors.Wrap(err, "querying grades")
	}

	enrollments := make(map[[2]int64]*Enrollment) // {student, class}: nil if not enrolled
	periodsByYear := make(map[int64][]AcademicPeriod)
	affected := make(map[QuarterKey]bool)

	for _, gv := range grades {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Checked++
		grade, assignment := gv.Grade, gv.Assignment

		enrKey := [2]int64{grade.StudentID, assignment.ClassID}
		enr, ok := enrollments[enrKey]
		if !ok {
			e, err := svc.repo.GetEnrollment(ctx, grade.StudentID, assignment.ClassID)
			switch {
			case err == nil:
				enr = &e
			case errors.Cause(err) == ErrNotFound:
			default:
				stats.Errors++
				svc.logger.Error("voiding: getting enrollment", err, map[string]interface{}{"run_id": stats.RunID, "grade_id": grade.ID})
				continue
			}
			enrollments[enrKey] = enr
		}
		if enr == nil {
			continue
		}

		periods, ok := periodsByYear[assignment.SchoolYearID]
		if !ok {
			if periods, err = svc.quarterPeriods(ctx, assignment.SchoolYearID); err != nil {
				stats.Errors++
				svc.logger.Error("voiding: loading periods", err, map[string]interface{}{"run_id": stats.RunID, "grade_id": grade.ID})
				continue
			}
			periodsByYear[assignment.SchoolYearID] = periods
		}

		period, ok := FindQuarterPeriod(periods, assignment.Quarter)
		if !ok || !IsLateEnrollment(*enr, period, svc.conf.LateEnrollmentDays) {
			continue
		}

		if !opts.DryRun {
			voiding := Voiding{
				By:     opts.VoidedBy,
				At:     nowFunc().UTC(),
				Reason: svc.lateEnrollmentReason(*enr, period),
			}
			if err := svc.repo.VoidGrade(ctx, grade.ID, voiding); err != nil {
				stats.Errors++
				svc.logger.Error("voiding: voiding grade", err, map[string]interface{}{"run_id": stats.RunID, "grade_id": grade.ID})
				continue
			}
		}
		stats.Voided++

		quarter, _ := NormalizeQuarter(assignment.Quarter)
		key := QuarterKey{
			StudentID:    grade.StudentID,
			ClassID:      assignment.ClassID,
			SchoolYearID: assignment.SchoolYearID,
			Quarter:      quarter,
		}
		if !affected[key] {
			affected[key] = true
			stats.Affected = append(stats.Affected, key)
		}
	}

	if !opts.DryRun {
		for _, key := range stats.Affected {
			if _, err := svc.GetOrRefresh(ctx, key, true); err != nil {
				stats.Errors++
				svc.logger.Error("voiding: refreshing quarter grade", err, keyData(key))
			}
		}
	}

	svc.logger.Info("late enrollment voiding finished", map[string]interface{}{
		"run_id":  stats.RunID,
		"dry_run": stats.DryRun,
		"checked": stats.Checked,
		"voided":  stats.Voided,
		"errors":  stats.Errors,
	})
	return stats, nil
}

func (svc *Service) lateEnrollmentReason(enr Enrollment, period AcademicPeriod) string {
	days := core.DaysBetween(enr.EnrolledAt, period.EndDate)
	var when string
	if days < 0 {
		when = fmt.Sprintf("%d days after the end of %s", -days, period.Name)
	} else {
		when = fmt.Sprintf("%d days before the end of %s", days, period.Name)
	}
	return fmt.Sprintf(
		"Student enrolled on %s, %s (%s). Voided per late enrollment policy: "+
			"enrollments within %d days of a quarter's end do not count toward that quarter.",
		enr.EnrolledAt.Format("2006-01-02"), when, period.EndDate.Format("2006-01-02"), svc.conf.LateEnrollmentDays,
	)
}
