package testutil

import (
	"context"
	"encoding/json"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/grading"
	"github.com/trezcool/masomo-grading/storage/database"
)

// PrepareDB opens a migrated sqlite database in a temp dir, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Database.Engine = database.SQLite
	conf.Database.Path = filepath.Join(t.TempDir(), "masomo_test.db")

	ctx := context.Background()
	db, err := database.Open(ctx, conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(ctx, db, "up"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// NopLogger discards everything but Fatal.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(msg string, _ ...interface{}) {
	log.Fatal(msg)
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Payload marshals a grade payload, e.g. Payload(t, map[string]interface{}{"score": 90}).
func Payload(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Payload() failed: %v", err)
	}
	return data
}

// School is a seeded school year with one class and its four quarters.
type School struct {
	Year     grading.SchoolYear
	Class    grading.Class
	Quarters map[string]grading.AcademicPeriod
}

// SeedSchool creates the 2024-2025 school year with quarters:
//
//	Q1 2024-09-01..2024-11-01, Q2 2024-11-02..2025-01-20,
//	Q3 2025-01-21..2025-03-31, Q4 2025-04-01..2025-06-15
func SeedSchool(t *testing.T, repo grading.Repository) School {
	t.Helper()
	ctx := context.Background()

	sy, err := repo.CreateSchoolYear(ctx, grading.SchoolYear{
		Name:      "2024-2025",
		StartDate: Date(2024, time.September, 1),
		EndDate:   Date(2025, time.June, 15),
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("SeedSchool() failed: %v", err)
	}
	class, err := repo.CreateClass(ctx, grading.Class{SchoolYearID: sy.ID, Name: "Mathematics"})
	if err != nil {
		t.Fatalf("SeedSchool() failed: %v", err)
	}

	bounds := []struct {
		name       string
		start, end time.Time
	}{
		{"Q1", Date(2024, time.September, 1), Date(2024, time.November, 1)},
		{"Q2", Date(2024, time.November, 2), Date(2025, time.January, 20)},
		{"Q3", Date(2025, time.January, 21), Date(2025, time.March, 31)},
		{"Q4", Date(2025, time.April, 1), Date(2025, time.June, 15)},
	}
	school := School{Year: sy, Class: class, Quarters: make(map[string]grading.AcademicPeriod, len(bounds))}
	for _, b := range bounds {
		p, err := repo.CreateAcademicPeriod(ctx, grading.AcademicPeriod{
			SchoolYearID: sy.ID,
			PeriodType:   grading.PeriodQuarter,
			Name:         b.name,
			StartDate:    b.start,
			EndDate:      b.end,
		})
		if err != nil {
			t.Fatalf("SeedSchool() failed: %v", err)
		}
		school.Quarters[b.name] = p
	}
	return school
}

func Enroll(t *testing.T, repo grading.Repository, studentID, classID int64, enrolledAt time.Time) grading.Enrollment {
	t.Helper()
	enr, err := repo.CreateEnrollment(context.Background(), grading.Enrollment{
		StudentID:  studentID,
		ClassID:    classID,
		EnrolledAt: enrolledAt,
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

// CreateAssignment creates an active assignment of the school's class; totalPoints <= 0 leaves it unset.
func CreateAssignment(t *testing.T, repo grading.Repository, school School, quarter string, totalPoints float64) grading.Assignment {
	t.Helper()
	a, err := repo.CreateAssignment(context.Background(), grading.Assignment{
		ClassID:      school.Class.ID,
		SchoolYearID: school.Year.ID,
		Name:         "Assignment " + quarter,
		Quarter:      quarter,
		TotalPoints:  totalPoints,
		Status:       grading.StatusActive,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

func CreateGroupAssignment(t *testing.T, repo grading.Repository, school School, quarter string, totalPoints float64) grading.GroupAssignment {
	t.Helper()
	a, err := repo.CreateGroupAssignment(context.Background(), grading.GroupAssignment{
		ClassID:      school.Class.ID,
		SchoolYearID: school.Year.ID,
		Name:         "Group project " + quarter,
		Quarter:      quarter,
		TotalPoints:  totalPoints,
		Status:       grading.StatusActive,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateGroupAssignment() failed: %v", err)
	}
	return a
}

func CreateGrade(t *testing.T, repo grading.Repository, studentID, assignmentID int64, data []byte) grading.Grade {
	t.Helper()
	now := time.Now().UTC()
	g, err := repo.CreateGrade(context.Background(), grading.Grade{
		StudentID:    studentID,
		AssignmentID: assignmentID,
		Data:         data,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateGrade() failed: %v", err)
	}
	return g
}

func CreateGroupGrade(t *testing.T, repo grading.Repository, studentID, assignmentID int64, data []byte) grading.GroupGrade {
	t.Helper()
	now := time.Now().UTC()
	g, err := repo.CreateGroupGrade(context.Background(), grading.GroupGrade{
		StudentID:    studentID,
		AssignmentID: assignmentID,
		Data:         data,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateGroupGrade() failed: %v", err)
	}
	return g
}
