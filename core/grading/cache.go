package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// GetOrRefresh returns the cached grade for key, recomputing it when it is absent, older than
// the cache TTL, or when force is set. A nil grade means the student has no grade for the
// quarter; any cached entry for the key is deleted in that case.
func (svc *Service) GetOrRefresh(ctx context.Context, key QuarterKey, force bool) (*QuarterGrade, error) {
	key, err := key.Normalize()
	if err != nil {
		return nil, err
	}

	if !force {
		qg, err := svc.repo.GetQuarterGrade(ctx, key)
		switch {
		case err == nil:
			if !svc.IsStale(qg) {
				return &qg, nil
			}
		case errors.Cause(err) != ErrNotFound:
			return nil, errors.Wrap(err, "getting quarter grade")
		}
	}
	return svc.refresh(ctx, key, force)
}

// IsStale reports whether a cached grade is older than the cache TTL.
func (svc *Service) IsStale(qg QuarterGrade) bool {
	return nowFunc().Sub(qg.LastCalculated) > svc.conf.CacheTTL
}

// refresh recomputes and stores the grade for key.
// Concurrent refreshes of one key share a single computation; a forced refresh never joins one
// already in flight. Entries are stamped with the start of their computation and the repository
// keeps the newest stamp.
func (svc *Service) refresh(ctx context.Context, key QuarterKey, force bool) (*QuarterGrade, error) {
	flightKey := fmt.Sprintf("%d:%d:%d:%s", key.StudentID, key.ClassID, key.SchoolYearID, key.Quarter)
	if force {
		svc.flight.Forget(flightKey)
	}
	v, err, _ := svc.flight.Do(flightKey, func() (interface{}, error) {
		calculatedAt := nowFunc().UTC()
		res, err := svc.ComputeQuarterGrade(ctx, key)
		if err != nil {
			return nil, err
		}
		if res == nil {
			if err := svc.repo.DeleteQuarterGrade(ctx, key); err != nil {
				return nil, errors.Wrap(err, "deleting quarter grade")
			}
			return nil, nil
		}

		qg, err := svc.repo.UpsertQuarterGrade(ctx, QuarterGrade{
			QuarterKey:     key,
			QuarterResult:  *res,
			LastCalculated: calculatedAt,
		})
		if err != nil {
			return nil, errors.Wrap(err, "saving quarter grade")
		}
		return qg, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	qg := v.(QuarterGrade)
	return &qg, nil
}

// CacheStatus summarizes the freshness of cached quarter grades.
type CacheStatus struct {
	Total  int        `json:"total" yaml:"total"`
	Fresh  int        `json:"fresh" yaml:"fresh"`
	Stale  int        `json:"stale" yaml:"stale"`
	Oldest *time.Time `json:"oldest_calculated,omitempty" yaml:"oldest_calculated,omitempty"`
	Newest *time.Time `json:"newest_calculated,omitempty" yaml:"newest_calculated,omitempty"`
	TTL    string     `json:"ttl" yaml:"ttl"`
}

func (svc *Service) CacheStatus(ctx context.Context, filter QuarterGradeFilter) (CacheStatus, error) {
	grades, err := svc.repo.QueryQuarterGrades(ctx, filter)
	if err != nil {
		return CacheStatus{}, errors.Wrap(err, "querying quarter grades")
	}

	status := CacheStatus{Total: len(grades), TTL: svc.conf.CacheTTL.String()}
	for i := range grades {
		calc := grades[i].LastCalculated
		if svc.IsStale(grades[i]) {
			status.Stale++
		} else {
			status.Fresh++
		}
		if status.Oldest == nil || calc.Before(*status.Oldest) {
			status.Oldest = &calc
		}
		if status.Newest == nil || calc.After(*status.Newest) {
			status.Newest = &calc
		}
	}
	return status, nil
}
