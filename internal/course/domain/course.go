package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"eduplatform/backend/internal/platform/enum"
)

// ErrCourseNotFound is returned by services when no course has the requested ID.
var ErrCourseNotFound = errors.New("course not found")

// Status is the lifecycle state of a course.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
	StatusSuspended Status = "SUSPENDED"
)

// ParseStatus parses s case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusDraft, StatusPublished, StatusArchived, StatusSuspended:
		return st, nil
	}
	return "", enum.Unrecognized("course status", s)
}

// Level is the difficulty of a course.
type Level string

const (
	LevelBeginner     Level = "BEGINNER"
	LevelIntermediate Level = "INTERMEDIATE"
	LevelAdvanced     Level = "ADVANCED"
	LevelExpert       Level = "EXPERT"
)

// ParseLevel parses s case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert:
		return l, nil
	}
	return "", enum.Unrecognized("course level", s)
}

// DisplayName returns "Beginner", "Intermediate", and so on.
func (l Level) DisplayName() string {
	if l == "" {
		return ""
	}
	s := string(l)
	return s[:1] + strings.ToLower(s[1:])
}

// LessonType is the kind of content a lesson delivers.
type LessonType string

const (
	LessonVideo      LessonType = "VIDEO"
	LessonText       LessonType = "TEXT"
	LessonQuiz       LessonType = "QUIZ"
	LessonAssignment LessonType = "ASSIGNMENT"
	LessonDocument   LessonType = "DOCUMENT"
)

// ParseLessonType parses s case-insensitively.
func ParseLessonType(s string) (LessonType, error) {
	switch t := LessonType(strings.ToUpper(strings.TrimSpace(s))); t {
	case LessonVideo, LessonText, LessonQuiz, LessonAssignment, LessonDocument:
		return t, nil
	}
	return "", enum.Unrecognized("lesson type", s)
}

// DisplayName returns "Video", "Assignment", and so on.
func (t LessonType) DisplayName() string {
	if t == "" {
		return ""
	}
	s := string(t)
	return s[:1] + strings.ToLower(s[1:])
}

// Lesson is one unit of course content. Lessons are stored inside the course
// document, ordered by Order.
type Lesson struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Type        LessonType `json:"type"`
	Content     string     `json:"content,omitempty"`
	VideoURL    string     `json:"videoUrl,omitempty"`
	QuizID      string     `json:"quizId,omitempty"`
	Order       int        `json:"order"`
}

func (l *Lesson) validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return errors.New("title is required")
	}
	if _, err := ParseLessonType(string(l.Type)); err != nil {
		return err
	}
	if l.Type == LessonQuiz && l.QuizID == "" {
		return errors.New("quiz lessons must reference a quiz")
	}
	if l.Order < 1 {
		return errors.New("order must be positive")
	}
	return nil
}

const (
	DefaultPassingScore = 70
	MaxRating           = 5.0
)

// Course is a catalog entry. EnrollmentCount is maintained by the enrollment
// coordinator and repaired by the reconciler.
type Course struct {
	ID                 string
	Title              string
	Description        string
	InstructorID       string
	InstructorName     string
	Category           string
	Level              Level
	Duration           string
	Price              float64
	Rating             float64
	EnrollmentCount    int64
	ImageURL           string
	Skills             []string
	Lessons            []Lesson
	Status             Status
	Published          bool
	AllowCertification bool
	PassingScore       int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks the fields a caller supplies when creating a course.
func (c *Course) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("title is required")
	}
	if c.InstructorID == "" {
		return errors.New("instructor is required")
	}
	if c.Price < 0 {
		return errors.New("price must not be negative")
	}
	if c.Rating < 0 || c.Rating > MaxRating {
		return errors.New("rating must be between 0 and 5")
	}
	if c.PassingScore < 0 || c.PassingScore > 100 {
		return errors.New("passing score must be between 0 and 100")
	}
	ids := make(map[string]struct{}, len(c.Lessons))
	for i := range c.Lessons {
		l := &c.Lessons[i]
		if err := l.validate(); err != nil {
			return fmt.Errorf("lesson %d: %w", i+1, err)
		}
		if l.ID != "" {
			if _, dup := ids[l.ID]; dup {
				return fmt.Errorf("lesson %d: duplicate id %q", i+1, l.ID)
			}
			ids[l.ID] = struct{}{}
		}
	}
	return nil
}

// SetLessons replaces the lesson list. A zero Order takes the lesson's
// position; the list is then sorted by Order, keeping input order on ties.
func (c *Course) SetLessons(lessons []Lesson) {
	out := slices.Clone(lessons)
	for i := range out {
		if out[i].Order == 0 {
			out[i].Order = i + 1
		}
	}
	slices.SortStableFunc(out, func(a, b Lesson) int { return a.Order - b.Order })
	c.Lessons = out
}

// Lesson returns the lesson with id, or nil.
func (c *Course) Lesson(id string) *Lesson {
	for i := range c.Lessons {
		if c.Lessons[i].ID == id {
			return &c.Lessons[i]
		}
	}
	return nil
}

// IsFree reports whether the course costs nothing.
func (c *Course) IsFree() bool {
	return c.Price == 0
}

// Publish marks the course visible in the public catalog.
func (c *Course) Publish() {
	c.Status = StatusPublished
	c.Published = true
}

// Archive soft-deletes the course. The published flag is left as-is; public
// listings filter on status too.
func (c *Course) Archive() {
	c.Status = StatusArchived
}

// IsPublic reports whether the course appears in public listings.
func (c *Course) IsPublic() bool {
	return c.Published && c.Status == StatusPublished
}
