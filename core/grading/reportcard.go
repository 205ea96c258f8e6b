package grading

import (
	"context"

	"github.com/pkg/errors"
)

type (
	ReportCardRow struct {
		ClassID   int64  `json:"class_id"`
		ClassName string `json:"class_name"`
		// Quarters maps Q1..Q4 to the quarter grade; nil when there is none.
		Quarters map[string]*QuarterResult `json:"quarters"`
	}

	ReportCard struct {
		StudentID    int64           `json:"student_id"`
		SchoolYearID int64           `json:"school_year_id"`
		Rows         []ReportCardRow `json:"rows"`
	}
)

// ReportCard collects the student's cached quarter grades for every active enrollment of the
// school year, refreshing stale ones. Letter grades are sanitized (no F).
func (svc *Service) ReportCard(ctx context.Context, studentID, schoolYearID int64) (ReportCard, error) {
	card := ReportCard{
		StudentID:    studentID,
		SchoolYearID: schoolYearID,
		Rows:         make([]ReportCardRow, 0),
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{
		StudentID:    studentID,
		SchoolYearID: schoolYearID,
		ActiveOnly:   true,
	})
	if err != nil {
		return card, errors.Wrap(err, "querying enrollments")
	}

	for _, enr := range enrollments {
		class, err := svc.repo.GetClass(ctx, enr.ClassID)
		if err != nil {
			return card, errors.Wrap(err, "getting class")
		}
		row := ReportCardRow{
			ClassID:   class.ID,
			ClassName: class.Name,
			Quarters:  make(map[string]*QuarterResult, len(Quarters)),
		}
		for _, q := range Quarters {
			key := QuarterKey{StudentID: studentID, ClassID: class.ID, SchoolYearID: schoolYearID, Quarter: q}
			qg, err := svc.GetOrRefresh(ctx, key, false)
			if err != nil {
				return card, errors.Wrapf(err, "getting %s grade", q)
			}
			if qg == nil {
				row.Quarters[q] = nil
				continue
			}
			res := qg.QuarterResult
			res.LetterGrade = SanitizeLetterGrade(res.LetterGrade)
			row.Quarters[q] = &res
		}
		card.Rows = append(card.Rows, row)
	}
	return card, nil
}
