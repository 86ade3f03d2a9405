package domain

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"eduplatform/backend/internal/platform/enum"
)

// ErrAccountNotFound is returned by services when no account has the requested ID.
var ErrAccountNotFound = errors.New("account not found")

// Role is the account's platform role. Values are the stored, upper-case names.
type Role string

const (
	// RoleNone is never stored; it marks routes with no role requirement.
	RoleNone       Role = ""
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

// Authority returns the granted-authority string for r, e.g. "ROLE_STUDENT".
func (r Role) Authority() string { return "ROLE_" + string(r) }

// DisplayName returns the presentation label for r.
func (r Role) DisplayName() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleInstructor:
		return "Instructor"
	case RoleAdmin:
		return "Administrator"
	}
	return ""
}

// ParseRole parses s case-insensitively ("student", "Student", "STUDENT").
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RoleStudent):
		return RoleStudent, nil
	case string(RoleInstructor):
		return RoleInstructor, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	}
	return RoleNone, enum.Unrecognized("role", s)
}

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive              Status = "ACTIVE"
	StatusInactive            Status = "INACTIVE"
	StatusSuspended           Status = "SUSPENDED"
	StatusPendingVerification Status = "PENDING_VERIFICATION"
)

// ParseStatus parses s case-insensitively; "pending-verification" and
// "pending_verification" are both accepted.
func ParseStatus(s string) (Status, error) {
	norm := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
	switch Status(norm) {
	case StatusActive, StatusInactive, StatusSuspended, StatusPendingVerification:
		return Status(norm), nil
	}
	return "", enum.Unrecognized("account status", s)
}

// Account is the identity record. Course sets hold course IDs without duplicates.
type Account struct {
	ID               string
	Name             string
	Email            string
	PasswordHash     string
	Role             Role
	Status           Status
	Bio              string
	Avatar           string
	Phone            string
	EnrolledCourses  []string
	CompletedCourses []string
	CreatedCourses   []string
	Certificates     []string
	CourseProgress   map[string]float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NormalizeEmail returns the lookup key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the account for persistence. Missing status defaults to active.
func (a *Account) Validate() error {
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	switch a.Role {
	case RoleStudent, RoleInstructor, RoleAdmin:
	default:
		return enum.Unrecognized("role", string(a.Role))
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	return nil
}

// IsEnrolled reports whether courseID is in the enrolled set.
func (a *Account) IsEnrolled(courseID string) bool {
	return slices.Contains(a.EnrolledCourses, courseID)
}

// HasCompleted reports whether courseID is in the completed set.
func (a *Account) HasCompleted(courseID string) bool {
	return slices.Contains(a.CompletedCourses, courseID)
}

// Enroll adds courseID to the enrolled set with zero progress. Returns false if
// the account was already enrolled, leaving it unchanged.
func (a *Account) Enroll(courseID string) bool {
	if a.IsEnrolled(courseID) {
		return false
	}
	a.EnrolledCourses = append(a.EnrolledCourses, courseID)
	if a.CourseProgress == nil {
		a.CourseProgress = make(map[string]float64)
	}
	a.CourseProgress[courseID] = 0
	return true
}

// SetProgress records progress for courseID. Reaching 100 moves the course into
// the completed set; the transition is one-way. Returns true when the course
// became completed by this call.
func (a *Account) SetProgress(courseID string, progress float64) bool {
	if a.CourseProgress == nil {
		a.CourseProgress = make(map[string]float64)
	}
	a.CourseProgress[courseID] = progress
	if progress >= 100 && !a.HasCompleted(courseID) {
		a.CompletedCourses = append(a.CompletedCourses, courseID)
		return true
	}
	return false
}

// AddCreatedCourse records courseID as authored by this account.
func (a *Account) AddCreatedCourse(courseID string) {
	if !slices.Contains(a.CreatedCourses, courseID) {
		a.CreatedCourses = append(a.CreatedCourses, courseID)
	}
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.EnrolledCourses = slices.Clone(a.EnrolledCourses)
	c.CompletedCourses = slices.Clone(a.CompletedCourses)
	c.CreatedCourses = slices.Clone(a.CreatedCourses)
	c.Certificates = slices.Clone(a.Certificates)
	c.CourseProgress = maps.Clone(a.CourseProgress)
	return &c
}
