// Package service implements enrollment as two ordered writes: the account's
// enrolled set first, then the course's enrollment counter. The writes are not
// atomic; a failure between them is reported as a partial failure.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/audit"
	auditdomain "eduplatform/backend/internal/audit/domain"
	coursedomain "eduplatform/backend/internal/course/domain"
	"eduplatform/backend/internal/platform/lock"
)

// ErrAlreadyEnrolled is returned when the account's enrolled set already has the course.
var ErrAlreadyEnrolled = errors.New("account already enrolled in this course")

// Outcome labels used in metrics and logs.
const (
	OutcomeSuccess  = "success"
	OutcomePartial  = "partial_failure"
	OutcomeTotal    = "total_failure"
	OutcomeRejected = "rejected"
)

// FailureKind tells how much of an enrollment was applied before it failed.
type FailureKind int

const (
	// TotalFailure means neither the account nor the course was updated.
	TotalFailure FailureKind = iota + 1
	// PartialFailure means the account was updated but the course counter was not.
	PartialFailure
)

func (k FailureKind) String() string {
	switch k {
	case TotalFailure:
		return OutcomeTotal
	case PartialFailure:
		return OutcomePartial
	default:
		return "unknown"
	}
}

// EnrollmentError wraps a storage failure during Enroll.
type EnrollmentError struct {
	Kind      FailureKind
	AccountID string
	CourseID  string
	Err       error
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("enrollment %s (account %s, course %s): %v", e.Kind, e.AccountID, e.CourseID, e.Err)
}

func (e *EnrollmentError) Unwrap() error { return e.Err }

// AccountStore is the minimal identity store needed by the coordinator.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	Save(ctx context.Context, a *domain.Account) error
}

// CourseCounter is the minimal course store needed by the coordinator.
type CourseCounter interface {
	IncrementEnrollment(ctx context.Context, id string) (count int64, found bool, err error)
}

// Recorder counts enrollment outcomes.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome string)
}

// Result is a completed enrollment.
type Result struct {
	Account         *domain.Account
	EnrollmentCount int64
}

// Coordinator performs enrollments. Account reads and writes for one account
// run under that account's lock; the course counter uses the store's atomic increment.
type Coordinator struct {
	accounts AccountStore
	courses  CourseCounter
	locker   lock.Locker
	recorder Recorder
	audit    audit.AuditLogger
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRecorder counts every Enroll outcome on r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithAuditLogger records every Enroll outcome as an audit entry.
func WithAuditLogger(l audit.AuditLogger) Option {
	return func(c *Coordinator) { c.audit = l }
}

// WithClock overrides the time source used to stamp account updates.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator returns a Coordinator. A nil locker uses an in-process lock.
func NewCoordinator(accounts AccountStore, courses CourseCounter, locker lock.Locker, log zerolog.Logger, opts ...Option) *Coordinator {
	if locker == nil {
		locker = lock.NewLocal()
	}
	c := &Coordinator{accounts: accounts, courses: courses, locker: locker, log: log, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enroll adds courseID to the account's enrolled set with zero progress, then
// increments the course counter. The course is not checked before the account
// is written. ErrAccountNotFound and ErrAlreadyEnrolled are returned as is;
// storage failures come back as *EnrollmentError.
func (c *Coordinator) Enroll(ctx context.Context, accountID, courseID string) (*Result, error) {
	acct, err := c.RecordAccountEnrollment(ctx, accountID, courseID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, ErrAlreadyEnrolled) {
			c.finish(ctx, accountID, courseID, OutcomeRejected, err)
			return nil, err
		}
		err = &EnrollmentError{Kind: TotalFailure, AccountID: accountID, CourseID: courseID, Err: err}
		c.finish(ctx, accountID, courseID, OutcomeTotal, err)
		return nil, err
	}

	count, err := c.IncrementCourseCounter(ctx, courseID)
	if err != nil {
		err = &EnrollmentError{Kind: PartialFailure, AccountID: accountID, CourseID: courseID, Err: err}
		c.finish(ctx, accountID, courseID, OutcomePartial, err)
		return nil, err
	}
	c.finish(ctx, accountID, courseID, OutcomeSuccess, nil)
	return &Result{Account: acct, EnrollmentCount: count}, nil
}

// RecordAccountEnrollment applies the account half of an enrollment under the
// account lock. It can be called alone to retry that half.
func (c *Coordinator) RecordAccountEnrollment(ctx context.Context, accountID, courseID string) (*domain.Account, error) {
	release, err := c.locker.Acquire(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("acquire account lock: %w", err)
	}
	defer release()

	acct, err := c.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}
	if !acct.Enroll(courseID) {
		return nil, ErrAlreadyEnrolled
	}
	acct.UpdatedAt = c.now().UTC()
	if err := c.accounts.Save(ctx, acct); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	return acct, nil
}

// IncrementCourseCounter applies the course half of an enrollment. It can be
// called alone to repair a partial failure.
func (c *Coordinator) IncrementCourseCounter(ctx context.Context, courseID string) (int64, error) {
	count, found, err := c.courses.IncrementEnrollment(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("increment enrollment count: %w", err)
	}
	if !found {
		return 0, coursedomain.ErrCourseNotFound
	}
	return count, nil
}

func (c *Coordinator) finish(ctx context.Context, accountID, courseID, outcome string, err error) {
	ev := c.log.Info()
	switch outcome {
	case OutcomePartial:
		ev = c.log.Error().Err(err).Bool("counter_drift", true)
	case OutcomeTotal:
		ev = c.log.Error().Err(err)
	case OutcomeRejected:
		ev = c.log.Debug().Err(err)
	}
	ev.Str("account_id", accountID).Str("course_id", courseID).Str("outcome", outcome).Msg("Enrollment")

	if c.recorder != nil {
		c.recorder.RecordOutcome(ctx, outcome)
	}
	if c.audit != nil {
		auditOutcome := auditdomain.OutcomeSuccess
		if outcome != OutcomeSuccess {
			auditOutcome = auditdomain.OutcomeFailure
		}
		c.audit.LogEvent(ctx, audit.Entry{
			AccountID: accountID,
			Action:    "enroll",
			Resource:  "course/" + courseID,
			Outcome:   auditOutcome,
			Metadata:  fmt.Sprintf(`{"outcome":%q}`, outcome),
		})
	}
}
