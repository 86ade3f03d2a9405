// Package reconcile repairs course enrollment counters from account enrolled sets.
package reconcile

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/course/domain"
)

// EnrollmentSource counts enrolled accounts per course ID.
type EnrollmentSource interface {
	ListEnrollments(ctx context.Context) (map[string]int64, error)
}

// CourseCounters reads and overwrites course counters.
type CourseCounters interface {
	ListIDs(ctx context.Context) ([]string, error)
	FindByID(ctx context.Context, id string) (*domain.Course, error)
	SetEnrollmentCount(ctx context.Context, id string, count int64) error
}

// Report summarizes one pass.
type Report struct {
	Courses   int
	Corrected int
	// Orphans are course IDs present in enrolled sets with no course row,
	// left behind by enrollments whose counter step failed.
	Orphans []string
}

// Reconciler recomputes enrollment counters. Run is idempotent.
type Reconciler struct {
	accounts EnrollmentSource
	courses  CourseCounters
	log      zerolog.Logger
}

// New returns a Reconciler.
func New(accounts EnrollmentSource, courses CourseCounters, log zerolog.Logger) *Reconciler {
	return &Reconciler{accounts: accounts, courses: courses, log: log}
}

// Run sets every course counter to the number of accounts enrolled in it.
// Enrollments committed while Run is in flight may be overwritten; the next
// pass corrects them.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var rep Report
	want, err := r.accounts.ListEnrollments(ctx)
	if err != nil {
		return rep, fmt.Errorf("list enrollments: %w", err)
	}
	ids, err := r.courses.ListIDs(ctx)
	if err != nil {
		return rep, fmt.Errorf("list courses: %w", err)
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		known[id] = true
		rep.Courses++
		c, err := r.courses.FindByID(ctx, id)
		if err != nil {
			return rep, fmt.Errorf("load course %s: %w", id, err)
		}
		if c == nil || c.EnrollmentCount == want[id] {
			continue
		}
		if err := r.courses.SetEnrollmentCount(ctx, id, want[id]); err != nil {
			return rep, fmt.Errorf("set enrollment count for %s: %w", id, err)
		}
		rep.Corrected++
		r.log.Info().Str("course_id", id).Int64("was", c.EnrollmentCount).Int64("now", want[id]).
			Msg("Corrected enrollment count")
	}
	for id := range want {
		if !known[id] {
			rep.Orphans = append(rep.Orphans, id)
		}
	}
	slices.Sort(rep.Orphans)
	if len(rep.Orphans) > 0 {
		r.log.Warn().Strs("course_ids", rep.Orphans).Msg("Accounts enrolled in missing courses")
	}
	return rep, nil
}
