package repository

import (
	"context"
	"errors"

	"eduplatform/backend/internal/account/domain"
)

// ErrDuplicateEmail is returned by Save when another account already owns the email.
var ErrDuplicateEmail = errors.New("account email already exists")

// Repository is the identity store. Find methods return nil, nil when no account matches.
type Repository interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Save writes the whole account document, inserting it if the ID is new.
	Save(ctx context.Context, a *domain.Account) error
	// ListEnrollments returns, per course ID, how many accounts have it in their enrolled set.
	ListEnrollments(ctx context.Context) (map[string]int64, error)
	CountByRole(ctx context.Context) (map[domain.Role]int64, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}
