package grading

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

// ComputeQuarterGrade aggregates the student's individual and group grades for a quarter into
// a weighted percentage: sum(points earned) / sum(total points) * 100.
//
// A nil result means there is no grade for the quarter: the student is not enrolled, the
// quarter has no academic period, the student dropped the class before the quarter started,
// or no grade is usable. Grades are included regardless of the enrollment date.
func (svc *Service) ComputeQuarterGrade(ctx context.Context, key QuarterKey) (*QuarterResult, error) {
	key, err := key.Normalize()
	if err != nil {
		return nil, err
	}

	enr, err := svc.repo.GetEnrollment(ctx, key.StudentID, key.ClassID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting enrollment")
	}

	periods, err := svc.quarterPeriods(ctx, key.SchoolYearID)
	if err != nil {
		return nil, err
	}
	period, ok := FindQuarterPeriod(periods, key.Quarter)
	if !ok {
		svc.logger.Debug("no academic period for quarter", keyData(key))
		return nil, nil
	}
	if droppedBeforeStart(enr, period) {
		return nil, nil
	}

	labels, _ := QuarterLabels(key.Quarter)
	work, err := svc.repo.QueryQuarterWork(ctx, key.StudentID, key.ClassID, key.SchoolYearID, labels)
	if err != nil {
		return nil, errors.Wrap(err, "querying quarter grades")
	}
	groupWork, err := svc.repo.QueryQuarterGroupWork(ctx, key.StudentID, key.ClassID, key.SchoolYearID, labels)
	if err != nil {
		return nil, errors.Wrap(err, "querying quarter group grades")
	}

	res := svc.aggregate(key, append(work, groupWork...))
	if res == nil && enrolledAfterEnd(enr, period) {
		svc.logger.Debug("enrolled after quarter end; not applicable", keyData(key))
	}
	return res, nil
}

func (svc *Service) aggregate(key QuarterKey, work []GradedWork) *QuarterResult {
	var earnedSum, totalSum float64
	var count int

	for _, w := range work {
		payload, err := ParseGradePayload(w.Data)
		if err != nil {
			data := keyData(key)
			data["grade_id"] = w.GradeID
			data["kind"] = w.Kind
			svc.logger.Warn("skipping malformed grade", err, data)
			continue
		}

		totalPoints := w.TotalPoints
		if totalPoints <= 0 {
			totalPoints = DefaultTotalPoints
		}
		earned, total, ok := payload.Resolve(totalPoints)
		if !ok || math.IsNaN(earned) || math.IsInf(earned, 0) {
			continue
		}
		earnedSum += earned
		totalSum += total
		count++
	}

	if totalSum == 0 {
		return nil
	}
	pct := round2(earnedSum / totalSum * 100)
	return &QuarterResult{
		LetterGrade:      LetterGrade(pct),
		Percentage:       pct,
		AssignmentsCount: count,
	}
}

func keyData(key QuarterKey) map[string]interface{} {
	return map[string]interface{}{
		"student_id":     key.StudentID,
		"class_id":       key.ClassID,
		"school_year_id": key.SchoolYearID,
		"quarter":        key.Quarter,
	}
}
