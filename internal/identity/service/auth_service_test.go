package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/account/repository"
	"eduplatform/backend/internal/security"
)

type memAccountRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Account
	saveErr error
	// dupOnSave simulates losing a registration race to another writer.
	dupOnSave bool
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byID: make(map[string]*domain.Account)}
}

func (r *memAccountRepo) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id].Clone(), nil
}

func (r *memAccountRepo) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Email == domain.NormalizeEmail(email) {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	a, _ := r.FindByEmail(ctx, email)
	return a != nil, nil
}

func (r *memAccountRepo) Save(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dupOnSave {
		return repository.ErrDuplicateEmail
	}
	if r.saveErr != nil {
		return r.saveErr
	}
	r.byID[a.ID] = a.Clone()
	return nil
}

func (r *memAccountRepo) CountByRole(ctx context.Context) (map[domain.Role]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.Role]int64)
	for _, a := range r.byID {
		out[a.Role]++
	}
	return out, nil
}

func (r *memAccountRepo) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.Status]int64)
	for _, a := range r.byID {
		out[a.Status]++
	}
	return out, nil
}

func newTestService(t *testing.T) (*AuthService, *memAccountRepo, *security.TokenService) {
	t.Helper()
	tokens, err := security.NewTestTokenService()
	if err != nil {
		t.Fatalf("NewTestTokenService: %v", err)
	}
	repo := newMemAccountRepo()
	return NewAuthService(repo, security.NewHasher(4), tokens, nil, zerolog.Nop()), repo, tokens
}

func register(t *testing.T, s *AuthService, email, role string) *AuthResult {
	t.Helper()
	res, err := s.Register(context.Background(), RegisterInput{Name: "Test User", Email: email, Password: "secret123", Role: role})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res
}

func TestRegister(t *testing.T) {
	s, repo, tokens := newTestService(t)
	res := register(t, s, "  Alice@Example.com ", "instructor")

	if res.Account.Email != "alice@example.com" {
		t.Errorf("email = %q, want lower-cased", res.Account.Email)
	}
	if res.Account.Role != domain.RoleInstructor || res.Account.Status != domain.StatusActive {
		t.Errorf("role/status = %s/%s", res.Account.Role, res.Account.Status)
	}
	if res.Account.PasswordHash == "secret123" || res.Account.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	sub, err := tokens.Validate(res.Token)
	if err != nil || sub != "alice@example.com" {
		t.Errorf("token subject = %q, %v", sub, err)
	}
	if !res.ExpiresAt.After(time.Now()) {
		t.Errorf("ExpiresAt = %v, want future", res.ExpiresAt)
	}
	if stored, _ := repo.FindByID(context.Background(), res.Account.ID); stored == nil {
		t.Error("account not persisted")
	}
}

func TestRegister_DefaultsToStudent(t *testing.T) {
	s, _, _ := newTestService(t)
	if res := register(t, s, "bob@example.com", ""); res.Account.Role != domain.RoleStudent {
		t.Errorf("role = %s, want STUDENT", res.Account.Role)
	}
}

// Self-registration honors any recognized role, admin included. Restricting
// it is an open decision; this pins the current behavior.
func TestRegister_AdminRoleAccepted(t *testing.T) {
	s, _, _ := newTestService(t)
	if res := register(t, s, "root@example.com", "admin"); res.Account.Role != domain.RoleAdmin {
		t.Errorf("role = %s, want ADMIN", res.Account.Role)
	}
}

func TestRegister_Rejections(t *testing.T) {
	s, repo, _ := newTestService(t)
	register(t, s, "alice@example.com", "student")
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{Email: "ALICE@example.com", Password: "secret123"})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("duplicate email: err = %v", err)
	}

	cases := []RegisterInput{
		{Email: "not-an-email", Password: "secret123"},
		{Email: "", Password: "secret123"},
		{Email: "carol@example.com", Password: "short"},
		{Email: "carol@example.com", Password: "secret123", Role: "superuser"},
	}
	for _, in := range cases {
		var ie *InputError
		if _, err := s.Register(ctx, in); !errors.As(err, &ie) {
			t.Errorf("Register(%+v): err = %v, want *InputError", in, err)
		}
	}

	repo.dupOnSave = true
	if _, err := s.Register(ctx, RegisterInput{Email: "dave@example.com", Password: "secret123"}); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("duplicate on save: err = %v", err)
	}
}

func TestLogin(t *testing.T) {
	s, _, _ := newTestService(t)
	registered := register(t, s, "alice@example.com", "student")
	ctx := context.Background()

	res, err := s.Login(ctx, "Alice@Example.com", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Account.ID != registered.Account.ID || res.Token == "" {
		t.Errorf("Login result = %+v", res)
	}

	for _, tc := range []struct{ email, password string }{
		{"alice@example.com", "wrong-password"},
		{"nobody@example.com", "secret123"},
		{"", ""},
	} {
		if _, err := s.Login(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q): err = %v, want ErrInvalidCredentials", tc.email, err)
		}
	}
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	s, _, _ := newTestService(t)
	res := register(t, s, "alice@example.com", "student")
	if _, err := s.Deactivate(context.Background(), res.Account.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := s.Login(context.Background(), "alice@example.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestValidateToken(t *testing.T) {
	s, repo, tokens := newTestService(t)
	res := register(t, s, "alice@example.com", "student")
	ctx := context.Background()

	acct, err := s.ValidateToken(ctx, res.Token)
	if err != nil || acct.ID != res.Account.ID {
		t.Fatalf("ValidateToken = %v, %v", acct, err)
	}
	if _, err := s.ValidateToken(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: err = %v", err)
	}
	orphan, _ := tokens.Issue("ghost@example.com")
	if _, err := s.ValidateToken(ctx, orphan); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token without account: err = %v", err)
	}
	repo.mu.Lock()
	delete(repo.byID, res.Account.ID)
	repo.mu.Unlock()
	if _, err := s.ValidateToken(ctx, res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("deleted account: err = %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	s, _, _ := newTestService(t)
	res := register(t, s, "alice@example.com", "student")
	ctx := context.Background()
	bio, name := "Learner", "  Alice A. "
	acct, err := s.UpdateProfile(ctx, res.Account.ID, ProfileUpdate{Name: &name, Bio: &bio})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if acct.Name != "Alice A." || acct.Bio != "Learner" {
		t.Errorf("profile = %q / %q", acct.Name, acct.Bio)
	}
	if acct.Phone != "" || acct.Email != "alice@example.com" {
		t.Error("unset fields must not change")
	}
	if _, err := s.UpdateProfile(ctx, "missing", ProfileUpdate{}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("missing account: err = %v", err)
	}
}

func TestStatistics(t *testing.T) {
	s, _, _ := newTestService(t)
	register(t, s, "s1@example.com", "student")
	register(t, s, "s2@example.com", "student")
	i := register(t, s, "i1@example.com", "instructor")
	register(t, s, "a1@example.com", "admin")
	if _, err := s.Deactivate(context.Background(), i.Account.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	st, err := s.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	want := UserStatistics{TotalUsers: 4, TotalStudents: 2, TotalInstructors: 1, TotalAdmins: 1, ActiveUsers: 3}
	if *st != want {
		t.Errorf("Statistics = %+v, want %+v", *st, want)
	}
}
