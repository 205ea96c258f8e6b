package dummydb

import (
	"sync"

	"github.com/trezcool/masomo-grading/core/grading"
)

type (
	// DB is an in-memory database used by tests.
	// A single RWMutex guards every table so that joins see a consistent snapshot.
	DB struct {
		sync.RWMutex
		pk int64

		schoolYears      map[int64]*grading.SchoolYear
		classes          map[int64]*grading.Class
		periods          map[int64]*grading.AcademicPeriod
		enrollments      map[int64]*grading.Enrollment
		assignments      map[int64]*grading.Assignment
		groupAssignments map[int64]*grading.GroupAssignment
		grades           map[int64]*grading.Grade
		groupGrades      map[int64]*grading.GroupGrade
		quarterGrades    map[grading.QuarterKey]*grading.QuarterGrade
	}
)

func Open() (*DB, error) {
	db := &DB{
		schoolYears:      make(map[int64]*grading.SchoolYear),
		classes:          make(map[int64]*grading.Class),
		periods:          make(map[int64]*grading.AcademicPeriod),
		enrollments:      make(map[int64]*grading.Enrollment),
		assignments:      make(map[int64]*grading.Assignment),
		groupAssignments: make(map[int64]*grading.GroupAssignment),
		grades:           make(map[int64]*grading.Grade),
		groupGrades:      make(map[int64]*grading.GroupGrade),
		quarterGrades:    make(map[grading.QuarterKey]*grading.QuarterGrade),
	}
	return db, nil
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK() int64 {
	db.pk++
	return db.pk
}
