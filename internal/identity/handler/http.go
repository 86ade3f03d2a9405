// Package handler serves the authentication and account endpoints over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/identity/service"
	"eduplatform/backend/internal/platform/httpx"
	progress "eduplatform/backend/internal/progress/service"
	"eduplatform/backend/internal/server/middleware"
)

// AuthService is the identity service surface used by the handler.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	ValidateToken(ctx context.Context, token string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, id string, u service.ProfileUpdate) (*domain.Account, error)
	Deactivate(ctx context.Context, id string) (*domain.Account, error)
	Statistics(ctx context.Context) (*service.UserStatistics, error)
}

// ProgressTracker records course progress.
type ProgressTracker interface {
	UpdateProgress(ctx context.Context, accountID, courseID string, progress float64) (*domain.Account, error)
}

// UserResponse is the public view of an account. The password hash is never included.
type UserResponse struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Email            string             `json:"email"`
	Role             string             `json:"role"`
	Avatar           string             `json:"avatar"`
	Bio              string             `json:"bio"`
	Status           domain.Status      `json:"status"`
	EnrolledCourses  []string           `json:"enrolledCourses"`
	CompletedCourses []string           `json:"completedCourses"`
	CreatedCourses   []string           `json:"createdCourses"`
	CourseProgress   map[string]float64 `json:"courseProgress"`
}

// NewUserResponse renders a. The role is lower-case, e.g. "student".
func NewUserResponse(a *domain.Account) *UserResponse {
	return &UserResponse{
		ID:               a.ID,
		Name:             a.Name,
		Email:            a.Email,
		Role:             strings.ToLower(string(a.Role)),
		Avatar:           a.Avatar,
		Bio:              a.Bio,
		Status:           a.Status,
		EnrolledCourses:  nonNil(a.EnrolledCourses),
		CompletedCourses: nonNil(a.CompletedCourses),
		CreatedCourses:   nonNil(a.CreatedCourses),
		CourseProgress:   a.CourseProgress,
	}
}

type authResponse struct {
	Message   string        `json:"message"`
	User      *UserResponse `json:"user"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

type validateResponse struct {
	Valid bool          `json:"valid"`
	User  *UserResponse `json:"user,omitempty"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type validateRequest struct {
	Token string `json:"token"`
}

type profileRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=2,max=50"`
	Bio    *string `json:"bio" validate:"omitempty,max=500"`
	Phone  *string `json:"phoneNumber" validate:"omitempty,max=32"`
	Avatar *string `json:"avatar" validate:"omitempty,max=2048"`
}

type progressRequest struct {
	Progress *float64 `json:"progress" validate:"required"`
}

// Handler serves /auth and /users.
type Handler struct {
	auth     AuthService
	progress ProgressTracker
	validate *validator.Validate
	log      zerolog.Logger
}

// New returns a Handler.
func New(auth AuthService, tracker ProgressTracker, v *validator.Validate, log zerolog.Logger) *Handler {
	if v == nil {
		v = validator.New()
	}
	return &Handler{auth: auth, progress: tracker, validate: v, log: log}
}

// Routes lists the endpoints served by h.
func (h *Handler) Routes() []httpx.Route {
	return []httpx.Route{
		{Pattern: "POST /auth/register", Audit: true, Handler: h.register},
		{Pattern: "POST /auth/login", Audit: true, Handler: h.login},
		{Pattern: "POST /auth/validate", Handler: h.validateToken},
		{Pattern: "GET /users/me", Role: domain.RoleStudent, Handler: h.me},
		{Pattern: "PUT /users/me", Role: domain.RoleStudent, Audit: true, Handler: h.updateProfile},
		{Pattern: "PUT /users/me/courses/{id}/progress", Role: domain.RoleStudent, Audit: true, Handler: h.updateProgress},
		{Pattern: "GET /users/statistics", Role: domain.RoleAdmin, Handler: h.statistics},
		{Pattern: "DELETE /users/{id}", Role: domain.RoleAdmin, Audit: true, Handler: h.deactivate},
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role,
	})
	var inputErr *service.InputError
	switch {
	case err == nil:
		h.writeAuth(w, "User registered successfully", res)
	case errors.As(err, &inputErr):
		httpx.WriteError(w, h.log, http.StatusBadRequest, inputErr.Msg)
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		httpx.WriteError(w, h.log, http.StatusConflict, "Email already exists")
	default:
		h.internal(w, err, "Registration failed")
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		h.writeAuth(w, "Login successful", res)
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, h.log, http.StatusBadRequest, "Invalid email or password")
	default:
		h.internal(w, err, "Login failed")
	}
}

func (h *Handler) writeAuth(w http.ResponseWriter, msg string, res *service.AuthResult) {
	httpx.WriteJSON(w, h.log, http.StatusOK, authResponse{
		Message:   msg,
		User:      NewUserResponse(res.Account),
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	})
}

func (h *Handler) validateToken(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := httpx.Decode(r, nil, &req); err != nil {
		httpx.WriteJSON(w, h.log, http.StatusBadRequest, validateResponse{Valid: false})
		return
	}
	acct, err := h.auth.ValidateToken(r.Context(), req.Token)
	switch {
	case err == nil:
		httpx.WriteJSON(w, h.log, http.StatusOK, validateResponse{Valid: true, User: NewUserResponse(acct)})
	case errors.Is(err, service.ErrInvalidToken):
		httpx.WriteJSON(w, h.log, http.StatusOK, validateResponse{Valid: false})
	default:
		h.internal(w, err, "Token validation failed")
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.current(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, NewUserResponse(acct))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.current(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.auth.UpdateProfile(r.Context(), acct.ID, service.ProfileUpdate{
		Name: req.Name, Bio: req.Bio, Phone: req.Phone, Avatar: req.Avatar,
	})
	if err != nil {
		h.accountError(w, err, "Profile update failed")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, NewUserResponse(updated))
}

func (h *Handler) updateProgress(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.current(w, r)
	if !ok {
		return
	}
	var req progressRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.progress.UpdateProgress(r.Context(), acct.ID, r.PathValue("id"), *req.Progress)
	if errors.Is(err, progress.ErrProgressOutOfRange) {
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.accountError(w, err, "Progress update failed")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, NewUserResponse(updated))
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.auth.Statistics(r.Context())
	if err != nil {
		h.internal(w, err, "Statistics unavailable")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, st)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	acct, err := h.auth.Deactivate(r.Context(), r.PathValue("id"))
	if err != nil {
		h.accountError(w, err, "Deactivation failed")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, NewUserResponse(acct))
}

// current returns the request's account. RequireRole normally guarantees one;
// a missing Principal is answered with 401.
func (h *Handler) current(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok || p.Account == nil {
		httpx.WriteError(w, h.log, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return p.Account, true
}

func (h *Handler) accountError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, domain.ErrAccountNotFound) {
		httpx.WriteError(w, h.log, http.StatusNotFound, "User not found")
		return
	}
	h.internal(w, err, msg)
}

func (h *Handler) internal(w http.ResponseWriter, err error, msg string) {
	h.log.Error().Err(err).Msg(msg)
	httpx.WriteError(w, h.log, http.StatusInternalServerError, msg)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
