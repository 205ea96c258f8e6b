package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-grading/core/grading"
)

type gradingRepository struct {
	db *DB
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *DB) grading.Repository {
	return &gradingRepository{db: db}
}

func (repo *gradingRepository) CreateSchoolYear(_ context.Context, sy grading.SchoolYear) (grading.SchoolYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sy.ID = repo.db.nextPK()
	repo.db.schoolYears[sy.ID] = &sy
	return sy, nil
}

func (repo *gradingRepository) QuerySchoolYears(_ context.Context, ids ...int64) ([]grading.SchoolYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	years := make([]grading.SchoolYear, 0, len(repo.db.schoolYears))
	if len(ids) > 0 {
		for _, id := range ids {
			if sy, ok := repo.db.schoolYears[id]; ok {
				years = append(years, *sy)
			}
		}
	} else {
		for _, sy := range repo.db.schoolYears {
			years = append(years, *sy)
		}
	}
	sort.Slice(years, func(i, j int) bool { return years[i].ID < years[j].ID })
	return years, nil
}

func (repo *gradingRepository) CreateClass(_ context.Context, class grading.Class) (grading.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	class.ID = repo.db.nextPK()
	repo.db.classes[class.ID] = &class
	return class, nil
}

func (repo *gradingRepository) GetClass(_ context.Context, id int64) (grading.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if class, ok := repo.db.classes[id]; ok {
		return *class, nil
	}
	return grading.Class{}, grading.ErrNotFound
}

func (repo *gradingRepository) CreateAcademicPeriod(_ context.Context, period grading.AcademicPeriod) (grading.AcademicPeriod, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	period.ID = repo.db.nextPK()
	repo.db.periods[period.ID] = &period
	return period, nil
}

func (repo *gradingRepository) QueryAcademicPeriods(_ context.Context, schoolYearID int64, periodType string) ([]grading.AcademicPeriod, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	periods := make([]grading.AcademicPeriod, 0)
	for _, p := range repo.db.periods {
		if p.SchoolYearID != schoolYearID {
			continue
		}
		if periodType != "" && p.PeriodType != periodType {
			continue
		}
		periods = append(periods, *p)
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].StartDate.Equal(periods[j].StartDate) {
			return periods[i].ID < periods[j].ID
		}
		return periods[i].StartDate.Before(periods[j].StartDate)
	})
	return periods, nil
}

func (repo *gradingRepository) CreateEnrollment(_ context.Context, enr grading.Enrollment) (grading.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	enr.ID = repo.db.nextPK()
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *gradingRepository) GetEnrollment(_ context.Context, studentID, classID int64) (grading.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.ClassID == classID {
			return *enr, nil
		}
	}
	return grading.Enrollment{}, grading.ErrNotFound
}

func (repo *gradingRepository) QueryEnrollments(_ context.Context, filter grading.EnrollmentFilter) ([]grading.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := make([]grading.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if filter.StudentID > 0 && enr.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassID > 0 && enr.ClassID != filter.ClassID {
			continue
		}
		if filter.ActiveOnly && !enr.IsActive {
			continue
		}
		if filter.SchoolYearID > 0 {
			class, ok := repo.db.classes[enr.ClassID]
			if !ok || class.SchoolYearID != filter.SchoolYearID {
				continue
			}
		}
		enrollments = append(enrollments, *enr)
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].ID < enrollments[j].ID })
	return enrollments, nil
}

func (repo *gradingRepository) CreateAssignment(_ context.Context, a grading.Assignment) (grading.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = repo.db.nextPK()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *gradingRepository) CreateGroupAssignment(_ context.Context, a grading.GroupAssignment) (grading.GroupAssignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = repo.db.nextPK()
	repo.db.groupAssignments[a.ID] = &a
	return a, nil
}

func (repo *gradingRepository) CreateGrade(_ context.Context, g grading.Grade) (grading.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[g.AssignmentID]; !ok {
		return grading.Grade{}, grading.ErrNotFound
	}
	g.ID = repo.db.nextPK()
	repo.db.grades[g.ID] = &g
	return g, nil
}

func (repo *gradingRepository) CreateGroupGrade(_ context.Context, g grading.GroupGrade) (grading.GroupGrade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.groupAssignments[g.AssignmentID]; !ok {
		return grading.GroupGrade{}, grading.ErrNotFound
	}
	g.ID = repo.db.nextPK()
	repo.db.groupGrades[g.ID] = &g
	return g, nil
}

func (repo *gradingRepository) GetGrade(_ context.Context, id int64) (grading.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		return *g, nil
	}
	return grading.Grade{}, grading.ErrNotFound
}

func inLabels(quarter string, labels []string) bool {
	for _, l := range labels {
		if quarter == l {
			return true
		}
	}
	return false
}

func matchesQuarter(a grading.Assignment, classID, schoolYearID int64, labels []string) bool {
	return a.ClassID == classID &&
		a.SchoolYearID == schoolYearID &&
		a.Status != grading.StatusVoided &&
		inLabels(a.Quarter, labels)
}

func (repo *gradingRepository) QueryQuarterWork(
	_ context.Context,
	studentID, classID, schoolYearID int64,
	quarterLabels []string,
) ([]grading.GradedWork, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	work := make([]grading.GradedWork, 0)
	for _, g := range repo.db.grades {
		if g.StudentID != studentID || g.IsVoided {
			continue
		}
		a, ok := repo.db.assignments[g.AssignmentID]
		if !ok || !matchesQuarter(*a, classID, schoolYearID, quarterLabels) {
			continue
		}
		work = append(work, grading.GradedWork{
			GradeID:      g.ID,
			Kind:         grading.KindIndividual,
			AssignmentID: a.ID,
			TotalPoints:  a.TotalPoints,
			Data:         g.Data,
		})
	}
	sort.Slice(work, func(i, j int) bool { return work[i].GradeID < work[j].GradeID })
	return work, nil
}

func (repo *gradingRepository) QueryQuarterGroupWork(
	_ context.Context,
	studentID, classID, schoolYearID int64,
	quarterLabels []string,
) ([]grading.GradedWork, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	work := make([]grading.GradedWork, 0)
	for _, g := range repo.db.groupGrades {
		if g.StudentID != studentID || g.IsVoided {
			continue
		}
		a, ok := repo.db.groupAssignments[g.AssignmentID]
		if !ok || !matchesQuarter(grading.Assignment(*a), classID, schoolYearID, quarterLabels) {
			continue
		}
		work = append(work, grading.GradedWork{
			GradeID:      g.ID,
			Kind:         grading.KindGroup,
			AssignmentID: a.ID,
			TotalPoints:  a.TotalPoints,
			Data:         g.Data,
		})
	}
	sort.Slice(work, func(i, j int) bool { return work[i].GradeID < work[j].GradeID })
	return work, nil
}

func (repo *gradingRepository) QueryGradesForVoiding(_ context.Context, schoolYearID int64) ([]grading.GradeForVoiding, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grades := make([]grading.GradeForVoiding, 0)
	for _, g := range repo.db.grades {
		if g.IsVoided {
			continue
		}
		a, ok := repo.db.assignments[g.AssignmentID]
		if !ok || a.Status == grading.StatusVoided {
			continue
		}
		if schoolYearID > 0 && a.SchoolYearID != schoolYearID {
			continue
		}
		grades = append(grades, grading.GradeForVoiding{Grade: *g, Assignment: *a})
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].Grade.ID < grades[j].Grade.ID })
	return grades, nil
}

func (repo *gradingRepository) VoidGrade(_ context.Context, gradeID int64, voiding grading.Voiding) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	g, ok := repo.db.grades[gradeID]
	if !ok {
		return grading.ErrNotFound
	}
	g.IsVoided = true
	g.Voiding = &voiding
	g.UpdatedAt = voiding.At
	return nil
}

func (repo *gradingRepository) GetQuarterGrade(_ context.Context, key grading.QuarterKey) (grading.QuarterGrade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if qg, ok := repo.db.quarterGrades[key]; ok {
		return *qg, nil
	}
	return grading.QuarterGrade{}, grading.ErrNotFound
}

func (repo *gradingRepository) QueryQuarterGrades(_ context.Context, filter grading.QuarterGradeFilter) ([]grading.QuarterGrade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grades := make([]grading.QuarterGrade, 0, len(repo.db.quarterGrades))
	for _, qg := range repo.db.quarterGrades {
		if filter.StudentID > 0 && qg.StudentID != filter.StudentID {
			continue
		}
		if filter.SchoolYearID > 0 && qg.SchoolYearID != filter.SchoolYearID {
			continue
		}
		grades = append(grades, *qg)
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].ID < grades[j].ID })
	return grades, nil
}

func (repo *gradingRepository) UpsertQuarterGrade(_ context.Context, qg grading.QuarterGrade) (grading.QuarterGrade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing, ok := repo.db.quarterGrades[qg.QuarterKey]; ok {
		if existing.LastCalculated.After(qg.LastCalculated) {
			return *existing, nil
		}
		qg.ID = existing.ID
	} else {
		qg.ID = repo.db.nextPK()
	}
	repo.db.quarterGrades[qg.QuarterKey] = &qg
	return qg, nil
}

func (repo *gradingRepository) DeleteQuarterGrade(_ context.Context, key grading.QuarterKey) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.quarterGrades, key)
	return nil
}
