package repository

import (
	"context"

	"eduplatform/backend/internal/quiz/domain"
)

// Repository is the quiz store. FindByID returns nil, nil when absent.
type Repository interface {
	FindByID(ctx context.Context, id string) (*domain.Quiz, error)
	// Save writes the whole quiz, inserting it if the ID is new.
	Save(ctx context.Context, q *domain.Quiz) error
	// ListByCourse returns the quizzes of one course, oldest first.
	ListByCourse(ctx context.Context, courseID string) ([]*domain.Quiz, error)
}
