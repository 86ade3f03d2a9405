package repository

import (
	"context"

	"eduplatform/backend/internal/course/domain"
)

// Page is a zero-based page request.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps p to a valid page.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the row offset of the page.
func (p Page) Offset() int { return p.Number * p.Size }

// Filter narrows a search of the public catalog. Zero fields match everything.
type Filter struct {
	Query    string
	Category string
	Level    domain.Level
	MinPrice *float64
	MaxPrice *float64
	// Free restricts the search to courses with a zero price.
	Free bool
}

// CategoryStat summarizes the published courses in one category.
type CategoryStat struct {
	Category  string  `json:"category"`
	Count     int64   `json:"count"`
	AvgRating float64 `json:"avgRating"`
}

// Result is one page of courses plus the total match count.
type Result struct {
	Courses []*domain.Course
	Total   int64
	Page    Page
}

// Repository is the course store. FindByID returns nil, nil when absent.
type Repository interface {
	FindByID(ctx context.Context, id string) (*domain.Course, error)
	Save(ctx context.Context, c *domain.Course) error
	// IncrementEnrollment atomically adds one to the enrollment counter and
	// returns the new value. found is false when the course does not exist.
	IncrementEnrollment(ctx context.Context, id string) (count int64, found bool, err error)
	SetEnrollmentCount(ctx context.Context, id string, count int64) error
	// ListPublished pages through published courses, newest first.
	ListPublished(ctx context.Context, page Page) (*Result, error)
	Search(ctx context.Context, f Filter, page Page) (*Result, error)
	// ListByInstructor pages through every course of one instructor, any status.
	ListByInstructor(ctx context.Context, instructorID string, page Page) (*Result, error)
	// CategoryStatistics groups published courses by category, largest first.
	CategoryStatistics(ctx context.Context) ([]CategoryStat, error)
	ListIDs(ctx context.Context) ([]string, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}
