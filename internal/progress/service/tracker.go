// Package service records per-course progress on an account.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/platform/lock"
)

// ErrProgressOutOfRange is returned for progress outside [0, 100] or NaN.
var ErrProgressOutOfRange = errors.New("progress must be between 0 and 100")

// AccountStore is the minimal identity store needed by the tracker.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	Save(ctx context.Context, a *domain.Account) error
}

// Tracker updates progress under the same per-account lock as enrollment.
type Tracker struct {
	accounts AccountStore
	locker   lock.Locker
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used to stamp account updates.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker returns a Tracker. A nil locker uses an in-process lock; share one
// locker with every other writer of account documents.
func NewTracker(accounts AccountStore, locker lock.Locker, log zerolog.Logger, opts ...Option) *Tracker {
	if locker == nil {
		locker = lock.NewLocal()
	}
	t := &Tracker{accounts: accounts, locker: locker, log: log, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// UpdateProgress sets the progress of courseID and moves it to the completed set
// when progress reaches 100. Completion is never undone. Enrollment in courseID
// is not required.
func (t *Tracker) UpdateProgress(ctx context.Context, accountID, courseID string, progress float64) (*domain.Account, error) {
	if math.IsNaN(progress) || progress < 0 || progress > 100 {
		return nil, ErrProgressOutOfRange
	}
	release, err := t.locker.Acquire(ctx, lock.AccountKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("acquire account lock: %w", err)
	}
	defer release()

	acct, err := t.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}
	if !acct.IsEnrolled(courseID) {
		t.log.Debug().Str("account_id", accountID).Str("course_id", courseID).
			Msg("Progress recorded for a course the account is not enrolled in")
	}
	completed := acct.SetProgress(courseID, progress)
	acct.UpdatedAt = t.now().UTC()
	if err := t.accounts.Save(ctx, acct); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	if completed {
		t.log.Info().Str("account_id", accountID).Str("course_id", courseID).Msg("Course completed")
	}
	return acct, nil
}
