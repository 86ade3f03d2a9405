package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/account/repository"
	"eduplatform/backend/internal/platform/lock"
)

// Sentinel errors for the auth service; the handler maps them to HTTP statuses.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrInvalidToken           = errors.New("invalid session token")
)

// InputError reports a registration field the service rejected. Its message is
// safe to show to the client.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// AccountRepo is the minimal identity store needed by the auth service.
type AccountRepo interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, a *domain.Account) error
	CountByRole(ctx context.Context) (map[domain.Role]int64, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}

// PasswordHasher hashes and verifies passwords. Digests are opaque.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// TokenIssuer issues and strictly validates session tokens.
type TokenIssuer interface {
	Issue(subject string) (string, error)
	Validate(token string) (string, error)
	TTL() time.Duration
}

// AuthResult is a signed-in account and its session token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.Account
}

// RegisterInput carries the fields of a new account. An empty Role registers a student.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// ProfileUpdate holds the editable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	Name   *string
	Bio    *string
	Phone  *string
	Avatar *string
}

// UserStatistics counts accounts by role and activity.
type UserStatistics struct {
	TotalUsers       int64 `json:"totalUsers"`
	TotalStudents    int64 `json:"totalStudents"`
	TotalInstructors int64 `json:"totalInstructors"`
	TotalAdmins      int64 `json:"totalAdmins"`
	ActiveUsers      int64 `json:"activeUsers"`
}

// AuthService implements register, login, token validation, and profile management.
type AuthService struct {
	accounts AccountRepo
	hasher   PasswordHasher
	tokens   TokenIssuer
	locker   lock.Locker
	log      zerolog.Logger
	now      func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. locker
// guards profile writes against concurrent enrollment writes; nil uses an in-process lock.
func NewAuthService(accounts AccountRepo, hasher PasswordHasher, tokens TokenIssuer, locker lock.Locker, log zerolog.Logger) *AuthService {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		locker:   locker,
		log:      log,
		now:      time.Now,
	}
}

// Register creates an active account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, &InputError{Msg: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	role := domain.RoleStudent
	if strings.TrimSpace(in.Role) != "" {
		r, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, &InputError{Msg: "invalid role: " + in.Role}
		}
		role = r
	}
	exists, err := s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	acct := &domain.Account{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(in.Name),
		Email:          email,
		PasswordHash:   hashed,
		Role:           role,
		Status:         domain.StatusActive,
		CourseProgress: map[string]float64{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := acct.Validate(); err != nil {
		return nil, err
	}
	if err := s.accounts.Save(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	s.log.Info().Str("account_id", acct.ID).Str("role", string(role)).Msg("Account registered")
	return s.signIn(acct)
}

// Login verifies email and password. Unknown email, wrong password, and
// deactivated accounts all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	acct, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil || !s.hasher.Verify(password, acct.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if acct.Status == domain.StatusInactive || acct.Status == domain.StatusSuspended {
		s.log.Info().Str("account_id", acct.ID).Str("status", string(acct.Status)).Msg("Login refused for disabled account")
		return nil, ErrInvalidCredentials
	}
	return s.signIn(acct)
}

func (s *AuthService) signIn(acct *domain.Account) (*AuthResult, error) {
	token, err := s.tokens.Issue(acct.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.tokens.TTL()),
		Account:   acct,
	}, nil
}

// ValidateToken returns the account a valid token belongs to. Any token failure,
// or a subject with no account, yields ErrInvalidToken.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.Account, error) {
	subject, err := s.tokens.Validate(token)
	if err != nil {
		s.log.Debug().Err(err).Msg("Token validation failed")
		return nil, ErrInvalidToken
	}
	acct, err := s.accounts.FindByEmail(ctx, subject)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrInvalidToken
	}
	return acct, nil
}

// GetAccount returns the account for id or domain.ErrAccountNotFound.
func (s *AuthService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	acct, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}
	return acct, nil
}

// UpdateProfile applies the non-nil fields of u.
func (s *AuthService) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (*domain.Account, error) {
	return s.mutate(ctx, id, func(a *domain.Account) {
		if u.Name != nil {
			a.Name = strings.TrimSpace(*u.Name)
		}
		if u.Bio != nil {
			a.Bio = *u.Bio
		}
		if u.Phone != nil {
			a.Phone = *u.Phone
		}
		if u.Avatar != nil {
			a.Avatar = *u.Avatar
		}
	})
}

// Deactivate soft-deletes the account by marking it inactive. Issued tokens
// stay valid until they expire.
func (s *AuthService) Deactivate(ctx context.Context, id string) (*domain.Account, error) {
	acct, err := s.mutate(ctx, id, func(a *domain.Account) { a.Status = domain.StatusInactive })
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("account_id", id).Msg("Account deactivated")
	return acct, nil
}

func (s *AuthService) mutate(ctx context.Context, id string, apply func(*domain.Account)) (*domain.Account, error) {
	release, err := s.locker.Acquire(ctx, lock.AccountKey(id))
	if err != nil {
		return nil, fmt.Errorf("acquire account lock: %w", err)
	}
	defer release()
	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(acct)
	acct.UpdatedAt = s.now().UTC()
	if err := s.accounts.Save(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Statistics counts accounts by role, plus active accounts.
func (s *AuthService) Statistics(ctx context.Context) (*UserStatistics, error) {
	byRole, err := s.accounts.CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.accounts.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	st := &UserStatistics{
		TotalStudents:    byRole[domain.RoleStudent],
		TotalInstructors: byRole[domain.RoleInstructor],
		TotalAdmins:      byRole[domain.RoleAdmin],
		ActiveUsers:      byStatus[domain.StatusActive],
	}
	for _, n := range byRole {
		st.TotalUsers += n
	}
	return st, nil
}

func validateEmail(email string) error {
	if email == "" {
		return &InputError{Msg: "email is required"}
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return &InputError{Msg: "invalid email format"}
	}
	return nil
}
