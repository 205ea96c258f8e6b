package grading

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core"
)

// Sweep scopes
const (
	ScopeAll   = "all"   // every quarter of the selected school years
	ScopeEnded = "ended" // only quarters that ended within the recent quarter window
)

type SweepOptions struct {
	Scope         string  `json:"scope" validate:"omitempty,oneof=ended all"`
	Force         bool    `json:"force"`
	SchoolYearIDs []int64 `json:"school_year_ids" validate:"omitempty,dive,gt=0"`
}

type SweepStats struct {
	RunID              string    `json:"run_id" yaml:"run_id"`
	Scope              string    `json:"scope" yaml:"scope"`
	TotalGradesUpdated int       `json:"total_grades_updated" yaml:"total_grades_updated"`
	TotalGradesSkipped int       `json:"total_grades_skipped" yaml:"total_grades_skipped"`
	Errors             int       `json:"errors" yaml:"errors"`
	StartedAt          time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt         time.Time `json:"finished_at" yaml:"finished_at"`
}

// RefreshAll refreshes the cached grades of every quarter of the selected school years.
func (svc *Service) RefreshAll(ctx context.Context, opts SweepOptions) (SweepStats, error) {
	opts.Scope = ScopeAll
	return svc.Sweep(ctx, opts)
}

// RefreshEndedQuarters refreshes the cached grades of quarters that ended recently,
// leaving settled history untouched.
func (svc *Service) RefreshEndedQuarters(ctx context.Context, opts SweepOptions) (SweepStats, error) {
	opts.Scope = ScopeEnded
	return svc.Sweep(ctx, opts)
}

// Sweep walks school years x students x active enrollments x quarters and refreshes every
// eligible cache key. Failures are counted per student and never abort the sweep; only a
// failure to list school years or a cancelled ctx stops it early.
func (svc *Service) Sweep(ctx context.Context, opts SweepOptions) (SweepStats, error) {
	switch opts.Scope {
	case "":
		opts.Scope = ScopeEnded
	case ScopeEnded, ScopeAll:
	default:
		return SweepStats{}, core.NewValidationError(nil, core.FieldError{Field: "scope", Error: "must be one of: ended all"})
	}
	stats := SweepStats{
		RunID:     uuid.NewString(),
		Scope:     opts.Scope,
		StartedAt: nowFunc().UTC(),
	}
	logData := map[string]interface{}{"run_id": stats.RunID, "scope": opts.Scope, "force": opts.Force}
	svc.logger.Info("quarter grades sweep started", logData)

	years, err := svc.repo.QuerySchoolYears(ctx, opts.SchoolYearIDs...)
	if err != nil {
		stats.FinishedAt = nowFunc().UTC()
		return stats, errors.Wrap(err, "querying school years")
	}

	today := svc.today()
	for _, sy := range years {
		periods, err := svc.quarterPeriods(ctx, sy.ID)
		if err != nil {
			stats.Errors++
			svc.logger.Error("sweep: loading school year periods", err, map[string]interface{}{"run_id": stats.RunID, "school_year_id": sy.ID})
			continue
		}
		quarters := svc.sweepQuarters(opts.Scope, periods, today)
		if len(quarters) == 0 {
			continue
		}

		enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{SchoolYearID: sy.ID, ActiveOnly: true})
		if err != nil {
			stats.Errors++
			svc.logger.Error("sweep: loading enrollments", err, map[string]interface{}{"run_id": stats.RunID, "school_year_id": sy.ID})
			continue
		}

		studentIDs, byStudent := groupByStudent(enrollments)
		for _, studentID := range studentIDs {
			if err := ctx.Err(); err != nil {
				stats.FinishedAt = nowFunc().UTC()
				return stats, err
			}

			updated, skipped, err := svc.refreshStudent(ctx, sy.ID, byStudent[studentID], quarters, opts.Force, today)
			stats.TotalGradesUpdated += updated
			stats.TotalGradesSkipped += skipped
			if err != nil {
				stats.Errors++
				svc.logger.Error("sweep: refreshing student grades", err, map[string]interface{}{
					"run_id":         stats.RunID,
					"school_year_id": sy.ID,
					"student_id":     studentID,
				})
			}
		}
	}

	stats.FinishedAt = nowFunc().UTC()
	logData["updated"] = stats.TotalGradesUpdated
	logData["skipped"] = stats.TotalGradesSkipped
	logData["errors"] = stats.Errors
	svc.logger.Info("quarter grades sweep finished", logData)
	return stats, nil
}

// sweepQuarter is a quarter selected for a sweep; period is nil when the school year has none.
type sweepQuarter struct {
	label  string
	period *AcademicPeriod
}

func (svc *Service) sweepQuarters(scope string, periods []AcademicPeriod, today time.Time) []sweepQuarter {
	quarters := make([]sweepQuarter, 0, len(Quarters))
	for _, q := range Quarters {
		var period *AcademicPeriod
		if p, ok := FindQuarterPeriod(periods, q); ok {
			period = &p
		}
		if scope == ScopeEnded && !svc.endedRecently(period, today) {
			continue
		}
		quarters = append(quarters, sweepQuarter{label: q, period: period})
	}
	return quarters
}

func (svc *Service) endedRecently(period *AcademicPeriod, today time.Time) bool {
	if period == nil {
		return false
	}
	end := core.Date(period.EndDate)
	return !end.After(today) && !end.Before(today.Add(-svc.conf.RecentQuarterWindow))
}

func (svc *Service) refreshStudent(
	ctx context.Context,
	schoolYearID int64,
	enrollments []Enrollment,
	quarters []sweepQuarter,
	force bool,
	today time.Time,
) (updated, skipped int, err error) {
	for _, enr := range enrollments {
		for _, q := range quarters {
			if !ShouldCalculateQuarterGrade(enr, q.period, today) {
				skipped++
				continue
			}
			key := QuarterKey{
				StudentID:    enr.StudentID,
				ClassID:      enr.ClassID,
				SchoolYearID: schoolYearID,
				Quarter:      q.label,
			}
			qg, err := svc.GetOrRefresh(ctx, key, force)
			if err != nil {
				return updated, skipped, errors.Wrapf(err, "refreshing class %d %s", enr.ClassID, q.label)
			}
			if qg == nil {
				skipped++
			} else {
				updated++
			}
		}
	}
	return updated, skipped, nil
}

func groupByStudent(enrollments []Enrollment) ([]int64, map[int64][]Enrollment) {
	ids := make([]int64, 0)
	byStudent := make(map[int64][]Enrollment)
	for _, enr := range enrollments {
		if _, ok := byStudent[enr.StudentID]; !ok {
			ids = append(ids, enr.StudentID)
		}
		byStudent[enr.StudentID] = append(byStudent[enr.StudentID], enr)
	}
	return ids, byStudent
}
