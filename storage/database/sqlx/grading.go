package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/grading"
)

type gradingRepository struct {
	exec core.DBExecutor
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(exec core.DBExecutor) grading.Repository {
	return &gradingRepository{exec: exec}
}

type (
	schoolYearRow struct {
		ID        int64     `db:"id"`
		Name      string    `db:"name"`
		StartDate time.Time `db:"start_date"`
		EndDate   time.Time `db:"end_date"`
		IsActive  bool      `db:"is_active"`
	}

	periodRow struct {
		ID           int64     `db:"id"`
		SchoolYearID int64     `db:"school_year_id"`
		PeriodType   string    `db:"period_type"`
		Name         string    `db:"name"`
		StartDate    time.Time `db:"start_date"`
		EndDate      time.Time `db:"end_date"`
	}

	enrollmentRow struct {
		ID         int64     `db:"id"`
		StudentID  int64     `db:"student_id"`
		ClassID    int64     `db:"class_id"`
		EnrolledAt time.Time `db:"enrolled_at"`
		DroppedAt  null.Time `db:"dropped_at"`
		IsActive   bool      `db:"is_active"`
	}

	assignmentRow struct {
		ID           int64        `db:"id"`
		ClassID      int64        `db:"class_id"`
		SchoolYearID int64        `db:"school_year_id"`
		Name         string       `db:"name"`
		Quarter      string       `db:"quarter"`
		TotalPoints  null.Float64 `db:"total_points"`
		Status       string       `db:"status"`
		CreatedAt    time.Time    `db:"created_at"`
	}

	gradeRow struct {
		ID           int64       `db:"id"`
		StudentID    int64       `db:"student_id"`
		AssignmentID int64       `db:"assignment_id"`
		Data         []byte      `db:"data"`
		IsVoided     bool        `db:"is_voided"`
		VoidedBy     null.String `db:"voided_by"`
		VoidedAt     null.Time   `db:"voided_at"`
		VoidedReason null.String `db:"voided_reason"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}

	gradedWorkRow struct {
		GradeID      int64        `db:"grade_id"`
		AssignmentID int64        `db:"assignment_id"`
		TotalPoints  null.Float64 `db:"total_points"`
		Data         []byte       `db:"data"`
	}

	quarterGradeRow struct {
		ID               int64     `db:"id"`
		StudentID        int64     `db:"student_id"`
		ClassID          int64     `db:"class_id"`
		SchoolYearID     int64     `db:"school_year_id"`
		Quarter          string    `db:"quarter"`
		LetterGrade      string    `db:"letter_grade"`
		Percentage       float64   `db:"percentage"`
		AssignmentsCount int       `db:"assignments_count"`
		LastCalculated   time.Time `db:"last_calculated"`
	}
)

func (r schoolYearRow) unmarshal() grading.SchoolYear {
	return grading.SchoolYear{
		ID:        r.ID,
		Name:      r.Name,
		StartDate: r.StartDate.UTC(),
		EndDate:   r.EndDate.UTC(),
		IsActive:  r.IsActive,
	}
}

func (r periodRow) unmarshal() grading.AcademicPeriod {
	return grading.AcademicPeriod{
		ID:           r.ID,
		SchoolYearID: r.SchoolYearID,
		PeriodType:   r.PeriodType,
		Name:         r.Name,
		StartDate:    r.StartDate.UTC(),
		EndDate:      r.EndDate.UTC(),
	}
}

func (r enrollmentRow) unmarshal() grading.Enrollment {
	enr := grading.Enrollment{
		ID:         r.ID,
		StudentID:  r.StudentID,
		ClassID:    r.ClassID,
		EnrolledAt: r.EnrolledAt.UTC(),
		IsActive:   r.IsActive,
	}
	if r.DroppedAt.Valid {
		enr.DroppedAt = r.DroppedAt.Time.UTC()
	}
	return enr
}

func (r assignmentRow) unmarshal() grading.Assignment {
	return grading.Assignment{
		ID:           r.ID,
		ClassID:      r.ClassID,
		SchoolYearID: r.SchoolYearID,
		Name:         r.Name,
		Quarter:      r.Quarter,
		TotalPoints:  r.TotalPoints.Float64,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func (r gradeRow) unmarshal() grading.Grade {
	g := grading.Grade{
		ID:           r.ID,
		StudentID:    r.StudentID,
		AssignmentID: r.AssignmentID,
		Data:         r.Data,
		IsVoided:     r.IsVoided,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.IsVoided {
		g.Voiding = &grading.Voiding{
			By:     r.VoidedBy.String,
			At:     r.VoidedAt.Time.UTC(),
			Reason: r.VoidedReason.String,
		}
	}
	return g
}

func (r quarterGradeRow) unmarshal() grading.QuarterGrade {
	return grading.QuarterGrade{
		ID: r.ID,
		QuarterKey: grading.QuarterKey{
			StudentID:    r.StudentID,
			ClassID:      r.ClassID,
			SchoolYearID: r.SchoolYearID,
			Quarter:      r.Quarter,
		},
		QuarterResult: grading.QuarterResult{
			LetterGrade:      r.LetterGrade,
			Percentage:       r.Percentage,
			AssignmentsCount: r.AssignmentsCount,
		},
		LastCalculated: r.LastCalculated.UTC(),
	}
}

func notFound(err error) error {
	if err == sql.ErrNoRows {
		return grading.ErrNotFound
	}
	return err
}

// insert runs an INSERT ... RETURNING id written with `?` bindvars.
func (repo *gradingRepository) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	err := repo.exec.GetContext(ctx, &id, repo.exec.Rebind(query+" RETURNING id"), args...)
	return id, err
}

func (repo *gradingRepository) CreateSchoolYear(ctx context.Context, sy grading.SchoolYear) (grading.SchoolYear, error) {
	id, err := repo.insert(ctx,
		`INSERT INTO school_years (name, start_date, end_date, is_active) VALUES (?, ?, ?, ?)`,
		sy.Name, sy.StartDate.UTC(), sy.EndDate.UTC(), sy.IsActive,
	)
	if err != nil {
		return grading.SchoolYear{}, errors.Wrap(err, "inserting school year")
	}
	sy.ID = id
	return sy, nil
}

func (repo *gradingRepository) QuerySchoolYears(ctx context.Context, ids ...int64) ([]grading.SchoolYear, error) {
	query := `SELECT id, name, start_date, end_date, is_active FROM school_years`
	var args []interface{}
	if len(ids) > 0 {
		q, a, err := sqlx.In(query+` WHERE id IN (?)`, ids)
		if err != nil {
			return nil, err
		}
		query, args = q, a
	}

	var rows []schoolYearRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(query+` ORDER BY id`), args...); err != nil {
		return nil, errors.Wrap(err, "selecting school years")
	}
	years := make([]grading.SchoolYear, 0, len(rows))
	for _, r := range rows {
		years = append(years, r.unmarshal())
	}
	return years, nil
}

func (repo *gradingRepository) CreateClass(ctx context.Context, class grading.Class) (grading.Class, error) {
	id, err := repo.insert(ctx,
		`INSERT INTO classes (school_year_id, name) VALUES (?, ?)`,
		class.SchoolYearID, class.Name,
	)
	if err != nil {
		return grading.Class{}, errors.Wrap(err, "inserting class")
	}
	class.ID = id
	return class, nil
}

func (repo *gradingRepository) GetClass(ctx context.Context, id int64) (grading.Class, error) {
	var class grading.Class
	row := repo.exec.QueryRowxContext(ctx, repo.exec.Rebind(`SELECT id, school_year_id, name FROM classes WHERE id = ?`), id)
	if err := row.Scan(&class.ID, &class.SchoolYearID, &class.Name); err != nil {
		return grading.Class{}, notFound(err)
	}
	return class, nil
}

func (repo *gradingRepository) CreateAcademicPeriod(ctx context.Context, period grading.AcademicPeriod) (grading.AcademicPeriod, error) {
	id, err := repo.insert(ctx,
		`INSERT INTO academic_periods (school_year_id, period_type, name, start_date, end_date) VALUES (?, ?, ?, ?, ?)`,
		period.SchoolYearID, period.PeriodType, period.Name, period.StartDate.UTC(), period.EndDate.UTC(),
	)
	if err != nil {
		return grading.AcademicPeriod{}, errors.Wrap(err, "inserting academic period")
	}
	period.ID = id
	return period, nil
}

func (repo *gradingRepository) QueryAcademicPeriods(ctx context.Context, schoolYearID int64, periodType string) ([]grading.AcademicPeriod, error) {
	query := `SELECT id, school_year_id, period_type, name, start_date, end_date FROM academic_periods WHERE school_year_id = ?`
	args := []interface{}{schoolYearID}
	if periodType != "" {
		query += ` AND period_type = ?`
		args = append(args, periodType)
	}

	var rows []periodRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(query+` ORDER BY start_date, id`), args...); err != nil {
		return nil, errors.Wrap(err, "selecting academic periods")
	}
	periods := make([]grading.AcademicPeriod, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, r.unmarshal())
	}
	return periods, nil
}

func (repo *gradingRepository) CreateEnrollment(ctx context.Context, enr grading.Enrollment) (grading.Enrollment, error) {
	id, err := repo.insert(ctx,
		`INSERT INTO enrollments (student_id, class_id, enrolled_at, dropped_at, is_active) VALUES (?, ?, ?, ?, ?)`,
		enr.StudentID, enr.ClassID, enr.EnrolledAt.UTC(),
		null.NewTime(enr.DroppedAt.UTC(), enr.IsDropped()), enr.IsActive,
	)
	if err != nil {
		return grading.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	enr.ID = id
	return enr, nil
}

const enrollmentColumns = `e.id, e.student_id, e.class_id, e.enrolled_at, e.dropped_at, e.is_active`

func (repo *gradingRepository) GetEnrollment(ctx context.Context, studentID, classID int64) (grading.Enrollment, error) {
	var row enrollmentRow
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.student_id = ? AND e.class_id = ?`
	if err := repo.exec.GetContext(ctx, &row, repo.exec.Rebind(query), studentID, classID); err != nil {
		return grading.Enrollment{}, notFound(err)
	}
	return row.unmarshal(), nil
}

func (repo *gradingRepository) QueryEnrollments(ctx context.Context, filter grading.EnrollmentFilter) ([]grading.Enrollment, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.StudentID > 0 {
		where = append(where, `e.student_id = ?`)
		args = append(args, filter.StudentID)
	}
	if filter.ClassID > 0 {
		where = append(where, `e.class_id = ?`)
		args = append(args, filter.ClassID)
	}
	if filter.SchoolYearID > 0 {
		where = append(where, `c.school_year_id = ?`)
		args = append(args, filter.SchoolYearID)
	}
	if filter.ActiveOnly {
		where = append(where, `e.is_active`)
	}

	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e JOIN classes c ON c.id = e.class_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}

	var rows []enrollmentRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(query+` ORDER BY e.id`), args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrollments := make([]grading.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.unmarshal())
	}
	return enrollments, nil
}

func (repo *gradingRepository) createAssignment(ctx context.Context, table string, a grading.Assignment) (grading.Assignment, error) {
	if a.Status == "" {
		a.Status = grading.StatusActive
	}
	id, err := repo.insert(ctx,
		`INSERT INTO `+table+` (class_id, school_year_id, name, quarter, total_points, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ClassID, a.SchoolYearID, a.Name, a.Quarter,
		null.NewFloat64(a.TotalPoints, a.TotalPoints > 0), a.Status, a.CreatedAt.UTC(),
	)
	if err != nil {
		return grading.Assignment{}, errors.Wrapf(err, "inserting into %s", table)
	}
	a.ID = id
	return a, nil
}

func (repo *gradingRepository) CreateAssignment(ctx context.Context, a grading.Assignment) (grading.Assignment, error) {
	return repo.createAssignment(ctx, "assignments", a)
}

func (repo *gradingRepository) CreateGroupAssignment(ctx context.Context, a grading.GroupAssignment) (grading.GroupAssignment, error) {
	created, err := repo.createAssignment(ctx, "group_assignments", grading.Assignment(a))
	return grading.GroupAssignment(created), err
}

func (repo *gradingRepository) createGrade(ctx context.Context, table string, g grading.Grade) (grading.Grade, error) {
	var voiding grading.Voiding
	if g.Voiding != nil {
		voiding = *g.Voiding
	}
	id, err := repo.insert(ctx,
		`INSERT INTO `+table+` (student_id, assignment_id, data, is_voided, voided_by, voided_at, voided_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.StudentID, g.AssignmentID, string(g.Data), g.IsVoided,
		null.NewString(voiding.By, voiding.By != ""),
		null.NewTime(voiding.At.UTC(), !voiding.At.IsZero()),
		null.NewString(voiding.Reason, voiding.Reason != ""),
		g.CreatedAt.UTC(), g.UpdatedAt.UTC(),
	)
	if err != nil {
		return grading.Grade{}, errors.Wrapf(err, "inserting into %s", table)
	}
	g.ID = id
	return g, nil
}

func (repo *gradingRepository) CreateGrade(ctx context.Context, g grading.Grade) (grading.Grade, error) {
	return repo.createGrade(ctx, "grades", g)
}

func (repo *gradingRepository) CreateGroupGrade(ctx context.Context, g grading.GroupGrade) (grading.GroupGrade, error) {
	created, err := repo.createGrade(ctx, "group_grades", grading.Grade(g))
	return grading.GroupGrade(created), err
}

const gradeColumns = `g.id, g.student_id, g.assignment_id, g.data, g.is_voided, g.voided_by, g.voided_at, g.voided_reason, g.created_at, g.updated_at`

func (repo *gradingRepository) GetGrade(ctx context.Context, id int64) (grading.Grade, error) {
	var row gradeRow
	if err := repo.exec.GetContext(ctx, &row, repo.exec.Rebind(`SELECT `+gradeColumns+` FROM grades g WHERE g.id = ?`), id); err != nil {
		return grading.Grade{}, notFound(err)
	}
	return row.unmarshal(), nil
}

func (repo *gradingRepository) queryWork(
	ctx context.Context,
	gradesTable, assignmentsTable, kind string,
	studentID, classID, schoolYearID int64,
	quarterLabels []string,
) ([]grading.GradedWork, error) {
	query, args, err := sqlx.In(
		`SELECT g.id AS grade_id, a.id AS assignment_id, a.total_points, g.data
		FROM `+gradesTable+` g JOIN `+assignmentsTable+` a ON a.id = g.assignment_id
		WHERE g.student_id = ? AND NOT g.is_voided
			AND a.class_id = ? AND a.school_year_id = ? AND a.status <> ? AND a.quarter IN (?)
		ORDER BY g.id`,
		studentID, classID, schoolYearID, grading.StatusVoided, quarterLabels,
	)
	if err != nil {
		return nil, err
	}

	var rows []gradedWorkRow
	if err = repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(query), args...); err != nil {
		return nil, errors.Wrapf(err, "selecting %s", gradesTable)
	}
	work := make([]grading.GradedWork, 0, len(rows))
	for _, r := range rows {
		work = append(work, grading.GradedWork{
			GradeID:      r.GradeID,
			Kind:         kind,
			AssignmentID: r.AssignmentID,
			TotalPoints:  r.TotalPoints.Float64,
			Data:         r.Data,
		})
	}
	return work, nil
}

func (repo *gradingRepository) QueryQuarterWork(
	ctx context.Context,
	studentID, classID, schoolYearID int64,
	quarterLabels []string,
) ([]grading.GradedWork, error) {
	return repo.queryWork(ctx, "grades", "assignments", grading.KindIndividual, studentID, classID, schoolYearID, quarterLabels)
}

func (repo *gradingRepository) QueryQuarterGroupWork(
	ctx context.Context,
	studentID, classID, schoolYearID int64,
	quarterLabels []string,
) ([]grading.GradedWork, error) {
	return repo.queryWork(ctx, "group_grades", "group_assignments", grading.KindGroup, studentID, classID, schoolYearID, quarterLabels)
}

func (repo *gradingRepository) QueryGradesForVoiding(ctx context.Context, schoolYearID int64) ([]grading.GradeForVoiding, error) {
	type row struct {
		gradeRow
		AssignmentClassID      int64        `db:"a_class_id"`
		AssignmentSchoolYearID int64        `db:"a_school_year_id"`
		AssignmentName         string       `db:"a_name"`
		AssignmentQuarter      string       `db:"a_quarter"`
		AssignmentTotalPoints  null.Float64 `db:"a_total_points"`
		AssignmentStatus       string       `db:"a_status"`
		AssignmentCreatedAt    time.Time    `db:"a_created_at"`
	}

	query := `SELECT ` + gradeColumns + `,
			a.class_id AS a_class_id, a.school_year_id AS a_school_year_id, a.name AS a_name,
			a.quarter AS a_quarter, a.total_points AS a_total_points, a.status AS a_status,
			a.created_at AS a_created_at
		FROM grades g JOIN assignments a ON a.id = g.assignment_id
		WHERE NOT g.is_voided AND a.status <> ?`
	args := []interface{}{grading.StatusVoided}
	if schoolYearID > 0 {
		query += ` AND a.school_year_id = ?`
		args = append(args, schoolYearID)
	}

	var rows []row
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(query+` ORDER BY g.id`), args...); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	grades := make([]grading.GradeForVoiding, 0, len(rows))
	for _, r := range rows {
		a := assignmentRow{
			ID:           r.AssignmentID,
			ClassID:      r.AssignmentClassID,
			SchoolYearID: r.AssignmentSchoolYearID,
			Name:         r.AssignmentName,
			Quarter:      r.AssignmentQuarter,
			TotalPoints:  r.AssignmentTotalPoints,
			Status:       r.AssignmentStatus,
			CreatedAt:    r.AssignmentCreatedAt,
		}
		grades = append(grades, grading.GradeForVoiding{Grade: r.gradeRow.unmarshal(), Assignment: a.unmarshal()})
	}
	return grades, nil
}

func (repo *gradingRepository) VoidGrade(ctx context.Context, gradeID int64, voiding grading.Voiding) error {
	res, err := repo.exec.ExecContext(ctx,
		repo.exec.Rebind(`UPDATE grades SET is_voided = ?, voided_by = ?, voided_at = ?, voided_reason = ?, updated_at = ? WHERE id = ?`),
		true, voiding.By, voiding.At.UTC(), voiding.Reason, voiding.At.UTC(), gradeID,
	)
	if err != nil {
		return errors.Wrap(err, "voiding grade")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return grading.ErrNotFound
	}
	return nil
}

const quarterGradeColumns = `id, student_id, class_id, school_year_id, quarter, letter_grade, percentage, assignments_count, last_calculated`

func (repo *gradingRepository) GetQuarterGrade(ctx context.Context, key grading.QuarterKey) (grading.QuarterGrade, error) {
	var row quarterGradeRow
	query := `SELECT ` + quarterGradeColumns + ` FROM quarter_grades
		WHERE student_id = ? AND class_id = ? AND school_year_id = ? AND quarter = ?`
	err := repo.exec.GetContext(ctx, &row, repo.exec.Rebind(query), key.StudentID, key.ClassID, key.SchoolYearID, key.Quarter)
	if err != nil {
		return grading.QuarterGrade{}, notFound(err)
	}
	return row.unmarshal(), nil
}

func (repo *gradingRepository) QueryQuarterGrades(ctx context.Context, filter grading.QuarterGradeFilter) ([]grading.QuarterGrade, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.StudentID > 0 {
		where = append(where, `student_id = ?`)
		args = append(args, filter.StudentID)
	}
	if filter.SchoolYearID > 0 {
		where = append(where, `school_year_id = ?`)
		args = append(args, filter.SchoolYearID)
	}

	query := `SELECT ` + quarterGradeColumns + ` FROM quarter_grades`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}

	var rows []quarterGradeRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(query+` ORDER BY id`), args...); err != nil {
		return nil, errors.Wrap(err, "selecting quarter grades")
	}
	grades := make([]grading.QuarterGrade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, r.unmarshal())
	}
	return grades, nil
}

// UpsertQuarterGrade relies on the unique (student_id, class_id, school_year_id, quarter) index;
// the ON CONFLICT clause is understood by both Postgres and SQLite. A conflicting row calculated
// later is left untouched, and no id is returned for it.
func (repo *gradingRepository) UpsertQuarterGrade(ctx context.Context, qg grading.QuarterGrade) (grading.QuarterGrade, error) {
	qg.LastCalculated = qg.LastCalculated.UTC()
	id, err := repo.insert(ctx,
		`INSERT INTO quarter_grades (student_id, class_id, school_year_id, quarter, letter_grade, percentage, assignments_count, last_calculated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, class_id, school_year_id, quarter) DO UPDATE SET
			letter_grade = excluded.letter_grade,
			percentage = excluded.percentage,
			assignments_count = excluded.assignments_count,
			last_calculated = excluded.last_calculated
		WHERE quarter_grades.last_calculated <= excluded.last_calculated`,
		qg.StudentID, qg.ClassID, qg.SchoolYearID, qg.Quarter,
		qg.LetterGrade, qg.Percentage, qg.AssignmentsCount, qg.LastCalculated,
	)
	if err == sql.ErrNoRows {
		return repo.GetQuarterGrade(ctx, qg.QuarterKey)
	}
	if err != nil {
		return grading.QuarterGrade{}, errors.Wrap(err, "upserting quarter grade")
	}
	qg.ID = id
	return qg, nil
}

func (repo *gradingRepository) DeleteQuarterGrade(ctx context.Context, key grading.QuarterKey) error {
	_, err := repo.exec.ExecContext(ctx,
		repo.exec.Rebind(`DELETE FROM quarter_grades WHERE student_id = ? AND class_id = ? AND school_year_id = ? AND quarter = ?`),
		key.StudentID, key.ClassID, key.SchoolYearID, key.Quarter,
	)
	if err != nil {
		return errors.Wrap(err, "deleting quarter grade")
	}
	return nil
}
