package grading_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/grading"
	"github.com/trezcool/masomo-grading/storage/database/dummy"
	"github.com/trezcool/masomo-grading/tests"
)

var ctx = context.Background()

func setup(t *testing.T) (*grading.Service, grading.Repository, testutil.School) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewGradingRepository(db)
	svc := grading.NewService(repo, testutil.NopLogger{}, core.NewTestConfig())
	return svc, repo, testutil.SeedSchool(t, repo)
}

func points(t *testing.T, earned float64) []byte {
	return testutil.Payload(t, map[string]interface{}{"points_earned": earned})
}

func q1Key(school testutil.School, studentID int64) grading.QuarterKey {
	return grading.QuarterKey{StudentID: studentID, ClassID: school.Class.ID, SchoolYearID: school.Year.ID, Quarter: "Q1"}
}

func TestService_ComputeQuarterGrade(t *testing.T) {
	svc, repo, school := setup(t)
	testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))

	a := testutil.CreateAssignment(t, repo, school, "Q1", 50)
	b := testutil.CreateAssignment(t, repo, school, "Q1", 100)
	testutil.CreateGrade(t, repo, 1, a.ID, points(t, 45))
	testutil.CreateGrade(t, repo, 1, b.ID, points(t, 80))

	t.Run("weighted by total points", func(t *testing.T) {
		res, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, 83.33, res.Percentage) // not the unweighted 85
		assert.Equal(t, "B", res.LetterGrade)
		assert.Equal(t, 2, res.AssignmentsCount)
	})

	t.Run("idempotent", func(t *testing.T) {
		r1, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
		require.NoError(t, err)
		r2, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
		require.NoError(t, err)
		assert.Equal(t, *r1, *r2)
	})

	t.Run("voided grades are excluded", func(t *testing.T) {
		c := testutil.CreateAssignment(t, repo, school, "Q1", 100)
		g := testutil.CreateGrade(t, repo, 1, c.ID, points(t, 5))
		require.NoError(t, repo.VoidGrade(ctx, g.ID, grading.Voiding{By: "tester", At: time.Now().UTC(), Reason: "test"}))

		res, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, 83.33, res.Percentage)
		assert.Equal(t, 2, res.AssignmentsCount)
	})

	t.Run("voided assignments are excluded", func(t *testing.T) {
		c, err := repo.CreateAssignment(ctx, grading.Assignment{
			ClassID: school.Class.ID, SchoolYearID: school.Year.ID, Quarter: "Q1", TotalPoints: 100, Status: grading.StatusVoided,
		})
		require.NoError(t, err)
		testutil.CreateGrade(t, repo, 1, c.ID, points(t, 0))

		res, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
		require.NoError(t, err)
		assert.Equal(t, 2, res.AssignmentsCount)
	})

	t.Run("malformed payloads are skipped", func(t *testing.T) {
		c := testutil.CreateAssignment(t, repo, school, "Q1", 100)
		testutil.CreateGrade(t, repo, 1, c.ID, []byte(`{"points_earned": "lol"}`))
		testutil.CreateGrade(t, repo, 1, c.ID, []byte(`{"comment": "no score"}`))

		res, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
		require.NoError(t, err)
		assert.Equal(t, 83.33, res.Percentage)
		assert.Equal(t, 2, res.AssignmentsCount)
	})

	t.Run("other quarters are ignored", func(t *testing.T) {
		c := testutil.CreateAssignment(t, repo, school, "Q2", 100)
		testutil.CreateGrade(t, repo, 1, c.ID, points(t, 0))

		res, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
		require.NoError(t, err)
		assert.Equal(t, 83.33, res.Percentage)
	})
}

func TestService_ComputeQuarterGrade_groupGrades(t *testing.T) {
	svc, repo, school := setup(t)
	testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))

	a := testutil.CreateAssignment(t, repo, school, "Q1", 0) // unset: 100 points
	ga := testutil.CreateGroupAssignment(t, repo, school, "Q1", 50)
	testutil.CreateGrade(t, repo, 1, a.ID, testutil.Payload(t, map[string]interface{}{"percentage": 70}))
	testutil.CreateGroupGrade(t, repo, 1, ga.ID, testutil.Payload(t, map[string]interface{}{"score": 40}))

	res, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 73.33, res.Percentage) // (70 + 40) / (100 + 50)
	assert.Equal(t, "C", res.LetterGrade)
	assert.Equal(t, 2, res.AssignmentsCount)
}

func TestService_ComputeQuarterGrade_quarterLabels(t *testing.T) {
	tests := []struct {
		name         string
		storedAs     string
		requestedAs  string
		wantPct      float64
		wantAssigned int
	}{
		{name: "Q1 stored, Q1 requested", storedAs: "Q1", requestedAs: "Q1", wantPct: 60, wantAssigned: 1},
		{name: "Q1 stored, 1 requested", storedAs: "Q1", requestedAs: "1", wantPct: 60, wantAssigned: 1},
		{name: "1 stored, Q1 requested", storedAs: "1", requestedAs: "Q1", wantPct: 60, wantAssigned: 1},
		{name: "1 stored, 1 requested", storedAs: "1", requestedAs: "1", wantPct: 60, wantAssigned: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, school := setup(t)
			testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))
			a := testutil.CreateAssignment(t, repo, school, tt.storedAs, 100)
			testutil.CreateGrade(t, repo, 1, a.ID, points(t, 60))

			key := q1Key(school, 1)
			key.Quarter = tt.requestedAs
			res, err := svc.ComputeQuarterGrade(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.wantPct, res.Percentage)
			assert.Equal(t, tt.wantAssigned, res.AssignmentsCount)
		})
	}

	t.Run("both conventions mixed", func(t *testing.T) {
		svc, repo, school := setup(t)
		testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))
		a := testutil.CreateAssignment(t, repo, school, "Q1", 100)
		b := testutil.CreateAssignment(t, repo, school, "1", 100)
		testutil.CreateGrade(t, repo, 1, a.ID, points(t, 60))
		testutil.CreateGrade(t, repo, 1, b.ID, points(t, 80))

		for _, q := range []string{"Q1", "1"} {
			key := q1Key(school, 1)
			key.Quarter = q
			res, err := svc.ComputeQuarterGrade(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 70.0, res.Percentage)
			assert.Equal(t, 2, res.AssignmentsCount)
		}
	})
}

func TestService_ComputeQuarterGrade_noGrade(t *testing.T) {
	svc, repo, school := setup(t)
	a := testutil.CreateAssignment(t, repo, school, "Q2", 100)

	// enrolled, no grades
	testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))
	// graded, not enrolled
	testutil.CreateGrade(t, repo, 2, a.ID, points(t, 60))
	// dropped before Q2 started
	_, err := repo.CreateEnrollment(ctx, grading.Enrollment{
		StudentID:  3,
		ClassID:    school.Class.ID,
		EnrolledAt: testutil.Date(2024, time.September, 1),
		DroppedAt:  testutil.Date(2024, time.October, 15),
	})
	require.NoError(t, err)
	testutil.CreateGrade(t, repo, 3, a.ID, points(t, 60))

	otherYear, err := repo.CreateSchoolYear(ctx, grading.SchoolYear{Name: "no periods"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		key     grading.QuarterKey
		wantErr error
	}{
		{name: "no grades", key: grading.QuarterKey{StudentID: 1, ClassID: school.Class.ID, SchoolYearID: school.Year.ID, Quarter: "Q2"}},
		{name: "not enrolled", key: grading.QuarterKey{StudentID: 2, ClassID: school.Class.ID, SchoolYearID: school.Year.ID, Quarter: "Q2"}},
		{name: "dropped before start", key: grading.QuarterKey{StudentID: 3, ClassID: school.Class.ID, SchoolYearID: school.Year.ID, Quarter: "Q2"}},
		{name: "no academic period", key: grading.QuarterKey{StudentID: 1, ClassID: school.Class.ID, SchoolYearID: otherYear.ID, Quarter: "Q2"}},
		{name: "invalid quarter", key: grading.QuarterKey{StudentID: 1, ClassID: school.Class.ID, SchoolYearID: school.Year.ID, Quarter: "Q7"}, wantErr: grading.ErrInvalidQuarter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.ComputeQuarterGrade(ctx, tt.key)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("ComputeQuarterGrade() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Nil(t, res)
		})
	}
}

func TestService_ComputeQuarterGrade_letterFloor(t *testing.T) {
	svc, repo, school := setup(t)
	testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))
	a := testutil.CreateAssignment(t, repo, school, "Q1", 100)
	testutil.CreateGrade(t, repo, 1, a.ID, points(t, 10))

	res, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Percentage)
	assert.Equal(t, "D", res.LetterGrade)
}

func TestService_GetOrRefresh(t *testing.T) {
	svc, repo, school := setup(t)
	testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))
	a := testutil.CreateAssignment(t, repo, school, "Q1", 100)
	testutil.CreateGrade(t, repo, 1, a.ID, points(t, 80))

	now := time.Date(2025, time.February, 1, 12, 0, 0, 0, time.UTC)
	defer grading.SetNow(now)()

	key := q1Key(school, 1)
	planted := func(age time.Duration) {
		require.NoError(t, repo.DeleteQuarterGrade(ctx, key))
		_, err := repo.UpsertQuarterGrade(ctx, grading.QuarterGrade{
			QuarterKey:     key,
			QuarterResult:  grading.QuarterResult{LetterGrade: "D", Percentage: 50, AssignmentsCount: 9},
			LastCalculated: now.Add(-age),
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		age     time.Duration
		force   bool
		wantPct float64
	}{
		{name: "fresh entry is served", age: 2 * time.Hour, wantPct: 50},
		{name: "stale entry is recomputed", age: 4 * time.Hour, wantPct: 80},
		{name: "force recomputes a fresh entry", age: time.Minute, force: true, wantPct: 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planted(tt.age)

			qg, err := svc.GetOrRefresh(ctx, key, tt.force)
			require.NoError(t, err)
			require.NotNil(t, qg)
			assert.Equal(t, tt.wantPct, qg.Percentage)

			stored, err := repo.GetQuarterGrade(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPct, stored.Percentage)
			if tt.wantPct == 80 {
				assert.True(t, stored.LastCalculated.Equal(now))
				assert.Equal(t, 1, stored.AssignmentsCount)
			}
		})
	}

	t.Run("missing entry is computed and cached", func(t *testing.T) {
		require.NoError(t, repo.DeleteQuarterGrade(ctx, key))

		alias := key
		alias.Quarter = "1"
		qg, err := svc.GetOrRefresh(ctx, alias, false)
		require.NoError(t, err)
		require.NotNil(t, qg)
		assert.Equal(t, "Q1", qg.Quarter)
		assert.Equal(t, "B-", qg.LetterGrade)

		_, err = repo.GetQuarterGrade(ctx, key)
		assert.NoError(t, err)
	})
}

func TestService_GetOrRefresh_deletesWhenNoGrade(t *testing.T) {
	svc, repo, school := setup(t)
	testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))
	a := testutil.CreateAssignment(t, repo, school, "Q1", 100)
	g := testutil.CreateGrade(t, repo, 1, a.ID, points(t, 80))

	key := q1Key(school, 1)
	qg, err := svc.GetOrRefresh(ctx, key, false)
	require.NoError(t, err)
	require.NotNil(t, qg)

	require.NoError(t, repo.VoidGrade(ctx, g.ID, grading.Voiding{By: "tester", At: time.Now().UTC(), Reason: "test"}))

	qg, err = svc.GetOrRefresh(ctx, key, true)
	require.NoError(t, err)
	assert.Nil(t, qg)

	_, err = repo.GetQuarterGrade(ctx, key)
	assert.Equal(t, grading.ErrNotFound, errors.Cause(err))

	// deleting an absent entry is fine
	qg, err = svc.GetOrRefresh(ctx, key, true)
	assert.NoError(t, err)
	assert.Nil(t, qg)
}

func TestService_ComputeQuarterGrade_nonFinitePayload(t *testing.T) {
	svc, repo, school := setup(t)
	testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))

	a := testutil.CreateAssignment(t, repo, school, "Q1", 50)
	b := testutil.CreateAssignment(t, repo, school, "Q1", 100)
	testutil.CreateGrade(t, repo, 1, a.ID, []byte(`{"points_earned": "NaN"}`))
	testutil.CreateGrade(t, repo, 1, b.ID, points(t, 80))
	c := testutil.CreateAssignment(t, repo, school, "Q1", 100)
	testutil.CreateGrade(t, repo, 1, c.ID, []byte(`{"percentage": "-Infinity"}`))

	res, err := svc.ComputeQuarterGrade(ctx, q1Key(school, 1))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, grading.QuarterResult{LetterGrade: "B-", Percentage: 80, AssignmentsCount: 1}, *res)

	qg, err := svc.GetOrRefresh(ctx, q1Key(school, 1), true)
	require.NoError(t, err)
	require.NotNil(t, qg)
	assert.Equal(t, 80.0, qg.Percentage)

	_, err = json.Marshal(qg)
	assert.NoError(t, err)
}

// stalledRepository holds the first quarter work query until release is closed,
// after it has read the grades.
type stalledRepository struct {
	grading.Repository
	stalled int32
	started chan struct{}
	release chan struct{}
}

func (r *stalledRepository) QueryQuarterWork(
	ctx context.Context,
	studentID, classID, schoolYearID int64,
	quarterLabels []string,
) ([]grading.GradedWork, error) {
	work, err := r.Repository.QueryQuarterWork(ctx, studentID, classID, schoolYearID, quarterLabels)
	if atomic.CompareAndSwapInt32(&r.stalled, 0, 1) {
		close(r.started)
		<-r.release
	}
	return work, err
}

func TestService_GetOrRefresh_forceAfterVoid(t *testing.T) {
	_, base, school := setup(t)
	testutil.Enroll(t, base, 1, school.Class.ID, testutil.Date(2024, time.September, 1))
	a := testutil.CreateAssignment(t, base, school, "Q1", 100)
	b := testutil.CreateAssignment(t, base, school, "Q1", 100)
	testutil.CreateGrade(t, base, 1, a.ID, points(t, 80))
	g := testutil.CreateGrade(t, base, 1, b.ID, points(t, 40))

	var tick int64
	start := time.Date(2025, time.February, 1, 12, 0, 0, 0, time.UTC)
	defer grading.SetNowFunc(func() time.Time {
		return start.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
	})()

	repo := &stalledRepository{Repository: base, started: make(chan struct{}), release: make(chan struct{})}
	svc := grading.NewService(repo, testutil.NopLogger{}, core.NewTestConfig())
	key := q1Key(school, 1)

	type result struct {
		qg  *grading.QuarterGrade
		err error
	}
	stale := make(chan result, 1)
	go func() {
		qg, err := svc.GetOrRefresh(ctx, key, false)
		stale <- result{qg, err}
	}()
	<-repo.started

	require.NoError(t, base.VoidGrade(ctx, g.ID, grading.Voiding{By: "tester", At: start, Reason: "test"}))

	qg, err := svc.GetOrRefresh(ctx, key, true)
	require.NoError(t, err)
	require.NotNil(t, qg)
	assert.Equal(t, 80.0, qg.Percentage)
	assert.Equal(t, 1, qg.AssignmentsCount)

	close(repo.release)
	res := <-stale
	require.NoError(t, res.err)
	require.NotNil(t, res.qg)

	// the computation that read the voided grade finished last but does not win
	stored, err := base.GetQuarterGrade(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 80.0, stored.Percentage)
	assert.Equal(t, 1, stored.AssignmentsCount)
}

func TestService_CacheStatus(t *testing.T) {
	svc, repo, school := setup(t)
	now := time.Date(2025, time.February, 1, 12, 0, 0, 0, time.UTC)
	defer grading.SetNow(now)()

	for i, age := range []time.Duration{time.Hour, 2 * time.Hour, 5 * time.Hour} {
		_, err := repo.UpsertQuarterGrade(ctx, grading.QuarterGrade{
			QuarterKey:     grading.QuarterKey{StudentID: int64(i + 1), ClassID: school.Class.ID, SchoolYearID: school.Year.ID, Quarter: "Q1"},
			QuarterResult:  grading.QuarterResult{LetterGrade: "A", Percentage: 99, AssignmentsCount: 1},
			LastCalculated: now.Add(-age),
		})
		require.NoError(t, err)
	}

	status, err := svc.CacheStatus(ctx, grading.QuarterGradeFilter{SchoolYearID: school.Year.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 2, status.Fresh)
	assert.Equal(t, 1, status.Stale)
	assert.Equal(t, "3h0m0s", status.TTL)
	assert.True(t, status.Oldest.Equal(now.Add(-5*time.Hour)))
	assert.True(t, status.Newest.Equal(now.Add(-time.Hour)))

	status, err = svc.CacheStatus(ctx, grading.QuarterGradeFilter{StudentID: 42})
	require.NoError(t, err)
	assert.Equal(t, 0, status.Total)
	assert.Nil(t, status.Oldest)
}

func TestService_Sweep(t *testing.T) {
	svc, repo, school := setup(t)
	defer grading.SetNow(time.Date(2025, time.February, 1, 8, 0, 0, 0, time.UTC))()

	q1 := testutil.CreateAssignment(t, repo, school, "Q1", 100)
	q2 := testutil.CreateAssignment(t, repo, school, "2", 100)
	for _, studentID := range []int64{1, 2} {
		testutil.Enroll(t, repo, studentID, school.Class.ID, testutil.Date(2024, time.September, 1))
		testutil.CreateGrade(t, repo, studentID, q1.ID, points(t, 90))
		testutil.CreateGrade(t, repo, studentID, q2.ID, points(t, 70))
	}
	// inactive enrollments are not swept
	_, err := repo.CreateEnrollment(ctx, grading.Enrollment{StudentID: 3, ClassID: school.Class.ID, EnrolledAt: testutil.Date(2024, time.September, 1)})
	require.NoError(t, err)

	t.Run("ended quarters", func(t *testing.T) {
		// only Q2 ended within the last 30 days
		stats, err := svc.RefreshEndedQuarters(ctx, grading.SweepOptions{})
		require.NoError(t, err)
		assert.Equal(t, grading.ScopeEnded, stats.Scope)
		assert.NotEmpty(t, stats.RunID)
		assert.Equal(t, 2, stats.TotalGradesUpdated)
		assert.Equal(t, 0, stats.TotalGradesSkipped)
		assert.Equal(t, 0, stats.Errors)

		cached, err := repo.QueryQuarterGrades(ctx, grading.QuarterGradeFilter{})
		require.NoError(t, err)
		require.Len(t, cached, 2)
		for _, qg := range cached {
			assert.Equal(t, "Q2", qg.Quarter)
			assert.Equal(t, 70.0, qg.Percentage)
		}
	})

	t.Run("all quarters", func(t *testing.T) {
		// Q1 & Q2 are graded; Q3 has started but has no grades; Q4 has not started
		stats, err := svc.RefreshAll(ctx, grading.SweepOptions{Force: true})
		require.NoError(t, err)
		assert.Equal(t, grading.ScopeAll, stats.Scope)
		assert.Equal(t, 4, stats.TotalGradesUpdated)
		assert.Equal(t, 4, stats.TotalGradesSkipped)
		assert.Equal(t, 0, stats.Errors)

		cached, err := repo.QueryQuarterGrades(ctx, grading.QuarterGradeFilter{StudentID: 1})
		require.NoError(t, err)
		assert.Len(t, cached, 2)
	})

	t.Run("unknown school year", func(t *testing.T) {
		stats, err := svc.Sweep(ctx, grading.SweepOptions{Scope: grading.ScopeAll, SchoolYearIDs: []int64{9999}})
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalGradesUpdated+stats.TotalGradesSkipped)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.RefreshAll(cctx, grading.SweepOptions{})
		assert.Equal(t, context.Canceled, err)
	})

	t.Run("unknown scope", func(t *testing.T) {
		_, err := svc.Sweep(ctx, grading.SweepOptions{Scope: "lol"})
		var vErr *core.ValidationError
		if assert.True(t, errors.As(err, &vErr)) {
			assert.Equal(t, []core.FieldError{{Field: "scope", Error: "must be one of: ended all"}}, vErr.Fields)
		}
	})
}

func TestShouldCalculateQuarterGrade(t *testing.T) {
	period := grading.AcademicPeriod{
		PeriodType: grading.PeriodQuarter,
		Name:       "Q2",
		StartDate:  testutil.Date(2024, time.November, 2),
		EndDate:    testutil.Date(2025, time.January, 17),
	}
	enrolled := grading.Enrollment{EnrolledAt: testutil.Date(2024, time.September, 1), IsActive: true}
	dropped := enrolled
	dropped.DroppedAt = testutil.Date(2024, time.October, 1)
	droppedLater := enrolled
	droppedLater.DroppedAt = testutil.Date(2024, time.December, 1)
	late := grading.Enrollment{EnrolledAt: testutil.Date(2025, time.January, 25), IsActive: true}

	tests := []struct {
		name   string
		enr    grading.Enrollment
		period *grading.AcademicPeriod
		today  time.Time
		want   bool
	}{
		{name: "no period", enr: enrolled, today: testutil.Date(2025, time.February, 1)},
		{name: "not started", enr: enrolled, period: &period, today: testutil.Date(2024, time.November, 1)},
		{name: "started", enr: enrolled, period: &period, today: testutil.Date(2024, time.November, 2), want: true},
		{name: "dropped before start", enr: dropped, period: &period, today: testutil.Date(2025, time.February, 1)},
		{name: "dropped during quarter", enr: droppedLater, period: &period, today: testutil.Date(2025, time.February, 1), want: true},
		{name: "enrolled after end", enr: late, period: &period, today: testutil.Date(2025, time.February, 1), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grading.ShouldCalculateQuarterGrade(tt.enr, tt.period, tt.today); got != tt.want {
				t.Errorf("ShouldCalculateQuarterGrade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_ReportCard(t *testing.T) {
	svc, repo, school := setup(t)
	testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2024, time.September, 1))
	a := testutil.CreateAssignment(t, repo, school, "Q1", 100)
	testutil.CreateGrade(t, repo, 1, a.ID, points(t, 10))

	// an imported F is reported as D
	_, err := repo.UpsertQuarterGrade(ctx, grading.QuarterGrade{
		QuarterKey:     grading.QuarterKey{StudentID: 1, ClassID: school.Class.ID, SchoolYearID: school.Year.ID, Quarter: "Q1"},
		QuarterResult:  grading.QuarterResult{LetterGrade: "F", Percentage: 10, AssignmentsCount: 1},
		LastCalculated: time.Now().UTC(),
	})
	require.NoError(t, err)

	card, err := svc.ReportCard(ctx, 1, school.Year.ID)
	require.NoError(t, err)
	require.Len(t, card.Rows, 1)

	row := card.Rows[0]
	assert.Equal(t, "Mathematics", row.ClassName)
	require.NotNil(t, row.Quarters["Q1"])
	assert.Equal(t, "D", row.Quarters["Q1"].LetterGrade)
	assert.Equal(t, 10.0, row.Quarters["Q1"].Percentage)
	for _, q := range []string{"Q2", "Q3", "Q4"} {
		v, ok := row.Quarters[q]
		assert.True(t, ok)
		assert.Nil(t, v)
	}

	card, err = svc.ReportCard(ctx, 2, school.Year.ID)
	require.NoError(t, err)
	assert.Empty(t, card.Rows)
}

func TestIsLateEnrollment(t *testing.T) {
	period := grading.AcademicPeriod{
		PeriodType: grading.PeriodQuarter,
		Name:       "Q2",
		StartDate:  testutil.Date(2024, time.November, 2),
		EndDate:    testutil.Date(2025, time.January, 17),
	}
	tests := []struct {
		name       string
		enrolledAt time.Time
		want       bool
	}{
		{name: "inside the window", enrolledAt: testutil.Date(2025, time.January, 10), want: true},
		{name: "well before the window", enrolledAt: testutil.Date(2024, time.December, 1)},
		{name: "window boundary", enrolledAt: testutil.Date(2025, time.January, 3), want: true},
		{name: "day before the window", enrolledAt: testutil.Date(2025, time.January, 2)},
		{name: "after the end", enrolledAt: testutil.Date(2025, time.January, 20), want: true},
		{name: "time of day is ignored", enrolledAt: time.Date(2025, time.January, 2, 23, 59, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enr := grading.Enrollment{EnrolledAt: tt.enrolledAt}
			if got := grading.IsLateEnrollment(enr, period, 14); got != tt.want {
				t.Errorf("IsLateEnrollment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_ShouldVoidAssignmentForStudent(t *testing.T) {
	svc, repo, school := setup(t)
	// Q2 ends 2025-01-20
	testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2025, time.January, 10))
	testutil.Enroll(t, repo, 2, school.Class.ID, testutil.Date(2024, time.December, 1))
	q2 := testutil.CreateAssignment(t, repo, school, "2", 100)
	q3 := testutil.CreateAssignment(t, repo, school, "Q3", 100)
	orphan := q2
	orphan.Quarter = "Q9"

	tests := []struct {
		name       string
		studentID  int64
		assignment grading.Assignment
		enr        *grading.Enrollment
		want       bool
	}{
		{name: "late in Q2", studentID: 1, assignment: q2, want: true},
		{name: "on time for Q3", studentID: 1, assignment: q3},
		{name: "enrolled early", studentID: 2, assignment: q2},
		{name: "not enrolled", studentID: 3, assignment: q2},
		{name: "unknown quarter", studentID: 1, assignment: orphan},
		{
			name:       "explicit enrollment",
			studentID:  3,
			assignment: q2,
			enr:        &grading.Enrollment{StudentID: 3, ClassID: school.Class.ID, EnrolledAt: testutil.Date(2025, time.January, 15)},
			want:       true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ShouldVoidAssignmentForStudent(ctx, tt.studentID, tt.assignment, tt.enr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_VoidLateEnrollmentGrades(t *testing.T) {
	now := time.Date(2025, time.February, 1, 8, 0, 0, 0, time.UTC)
	defer grading.SetNow(now)()

	seed := func(t *testing.T) (*grading.Service, grading.Repository, testutil.School, grading.Grade, grading.Grade) {
		svc, repo, school := setup(t)
		testutil.Enroll(t, repo, 1, school.Class.ID, testutil.Date(2025, time.January, 10))
		testutil.Enroll(t, repo, 2, school.Class.ID, testutil.Date(2024, time.September, 1))
		q2 := testutil.CreateAssignment(t, repo, school, "Q2", 100)
		late := testutil.CreateGrade(t, repo, 1, q2.ID, points(t, 95))
		onTime := testutil.CreateGrade(t, repo, 2, q2.ID, points(t, 75))
		// graded but never enrolled
		testutil.CreateGrade(t, repo, 5, q2.ID, points(t, 75))
		return svc, repo, school, late, onTime
	}

	t.Run("dry run", func(t *testing.T) {
		svc, repo, _, late, _ := seed(t)

		stats, err := svc.VoidLateEnrollmentGrades(ctx, grading.VoidOptions{DryRun: true})
		require.NoError(t, err)
		assert.True(t, stats.DryRun)
		assert.Equal(t, 3, stats.Checked)
		assert.Equal(t, 1, stats.Voided)
		assert.Len(t, stats.Affected, 1)

		g, err := repo.GetGrade(ctx, late.ID)
		require.NoError(t, err)
		assert.False(t, g.IsVoided)
	})

	t.Run("voids and refreshes", func(t *testing.T) {
		svc, repo, school, late, onTime := seed(t)
		key := grading.QuarterKey{StudentID: 1, ClassID: school.Class.ID, SchoolYearID: school.Year.ID, Quarter: "Q2"}
		_, err := svc.GetOrRefresh(ctx, key, false)
		require.NoError(t, err)

		stats, err := svc.VoidLateEnrollmentGrades(ctx, grading.VoidOptions{SchoolYearID: school.Year.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Voided)
		assert.Equal(t, 0, stats.Errors)
		assert.Equal(t, []grading.QuarterKey{key}, stats.Affected)

		g, err := repo.GetGrade(ctx, late.ID)
		require.NoError(t, err)
		assert.True(t, g.IsVoided)
		require.NotNil(t, g.Voiding)
		assert.Equal(t, "system:late-enrollment", g.Voiding.By)
		assert.True(t, g.Voiding.At.Equal(now))
		assert.True(t, strings.Contains(g.Voiding.Reason, "2025-01-10"), g.Voiding.Reason)
		assert.True(t, strings.Contains(g.Voiding.Reason, "10 days before the end of Q2"), g.Voiding.Reason)

		g, err = repo.GetGrade(ctx, onTime.ID)
		require.NoError(t, err)
		assert.False(t, g.IsVoided)

		// the only grade was voided: the cached entry is gone
		_, err = repo.GetQuarterGrade(ctx, key)
		assert.Equal(t, grading.ErrNotFound, errors.Cause(err))

		// already voided grades are not checked again
		stats, err = svc.VoidLateEnrollmentGrades(ctx, grading.VoidOptions{VoidedBy: "admin"})
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Checked)
		assert.Equal(t, 0, stats.Voided)
	})
}
