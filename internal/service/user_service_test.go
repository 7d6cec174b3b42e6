package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/email"
)

type mockUserRepo struct {
	usersByID map[string]domain.User
	createErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByID: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	for _, u := range m.usersByID {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return strings.EqualFold(u.Username, username) })
}

func (m *mockUserRepo) GetByEmail(_ context.Context, emailAddr string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return strings.EqualFold(u.Email, emailAddr) })
}

func (m *mockUserRepo) GetByIdentifier(_ context.Context, identifier string) (domain.User, error) {
	return m.find(func(u domain.User) bool {
		return strings.EqualFold(u.Username, identifier) || strings.EqualFold(u.Email, identifier)
	})
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.usersByID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.usersByID, id)
	return nil
}

type mockEmailSender struct {
	resetTo   string
	resetURL  string
	staffTo   string
	staff     email.StaffQuestion
	err       error
	sendCalls int
}

func (m *mockEmailSender) SendStaffQuestion(_ context.Context, toEmail string, q email.StaffQuestion) error {
	m.sendCalls++
	m.staffTo = toEmail
	m.staff = q
	return m.err
}

func (m *mockEmailSender) SendPasswordReset(_ context.Context, toEmail, resetURL string, _ time.Time) error {
	m.sendCalls++
	m.resetTo = toEmail
	m.resetURL = resetURL
	return m.err
}

func newTestUserService(repo *mockUserRepo, sender *mockEmailSender) (*UserService, *JWTService) {
	jwtSvc := NewJWTService("secret", time.Hour, time.Hour)
	return NewUserService(zap.NewNop(), repo, sender, jwtSvc, NewRateLimiter(time.Minute, 2), "http://localhost:8080/"), jwtSvc
}

func TestUserServiceRegister(t *testing.T) {
	repo := newMockUserRepo()
	svc, _ := newTestUserService(repo, &mockEmailSender{})
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: " salem ", Email: "Salem@Example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "salem" || user.Email != "salem@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret123" {
		t.Fatalf("expected bcrypt hash")
	}

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Username: "SALEM", Email: "other@example.com", Password: "secret123"})
		if !errors.Is(err, ErrUsernameTaken) {
			t.Fatalf("expected ErrUsernameTaken, got %v", err)
		}
	})
	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Username: "noura", Email: "salem@example.com", Password: "secret123"})
		if !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})
	t.Run("validation", func(t *testing.T) {
		cases := []struct {
			in   RegisterInput
			want error
		}{
			{RegisterInput{Username: "", Email: "a@b.co", Password: "secret123"}, ErrInvalidUsername},
			{RegisterInput{Username: "a@b", Email: "a@b.co", Password: "secret123"}, ErrInvalidUsername},
			{RegisterInput{Username: "noura", Email: "not-an-email", Password: "secret123"}, ErrInvalidEmail},
			{RegisterInput{Username: "noura", Email: "n@example.com", Password: "123"}, ErrWeakPassword},
		}
		for _, c := range cases {
			if _, err := svc.Register(ctx, c.in); !errors.Is(err, c.want) {
				t.Fatalf("input %+v: expected %v, got %v", c.in, c.want, err)
			}
		}
	})
	t.Run("unique violation race", func(t *testing.T) {
		repo.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		defer func() { repo.createErr = nil }()
		_, err := svc.Register(ctx, RegisterInput{Username: "fahad", Email: "fahad@example.com", Password: "secret123"})
		if !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})
}

func TestUserServiceAuthenticate(t *testing.T) {
	repo := newMockUserRepo()
	svc, _ := newTestUserService(repo, &mockEmailSender{})
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Username: "salem", Email: "salem@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, identifier := range []string{"salem", "SALEM@example.com", " salem "} {
		if _, err := svc.Authenticate(ctx, identifier, "secret123"); err != nil {
			t.Fatalf("identifier %q: expected success, got %v", identifier, err)
		}
	}
	if _, err := svc.Authenticate(ctx, "salem", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ghost", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty input, got %v", err)
	}
}

func TestUserServiceGetDelete(t *testing.T) {
	repo := newMockUserRepo()
	svc, _ := newTestUserService(repo, &mockEmailSender{})
	ctx := context.Background()
	user, _ := svc.Register(ctx, RegisterInput{Username: "salem", Email: "salem@example.com", Password: "secret123"})

	if got, err := svc.Get(ctx, user.ID); err != nil || got.Username != "salem" {
		t.Fatalf("get: %+v, %v", got, err)
	}
	if err := svc.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func TestUserServicePasswordReset(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc, _ := newTestUserService(repo, sender)
	ctx := context.Background()
	user, _ := svc.Register(ctx, RegisterInput{Username: "salem", Email: "salem@example.com", Password: "secret123"})

	if err := svc.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email must not error, got %v", err)
	}
	if sender.sendCalls != 0 {
		t.Fatalf("expected no email for unknown address")
	}

	if err := svc.RequestPasswordReset(ctx, "SALEM@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	prefix := "http://localhost:8080/reset-password/"
	if sender.resetTo != "salem@example.com" || !strings.HasPrefix(sender.resetURL, prefix) {
		t.Fatalf("unexpected reset email to=%q url=%q", sender.resetTo, sender.resetURL)
	}
	token := strings.TrimPrefix(sender.resetURL, prefix)

	if err := svc.ResetPassword(ctx, token, "123"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "newsecret"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Authenticate(ctx, user.Username, "newsecret"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "another1"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected token unusable after reset, got %v", err)
	}
	if err := svc.ResetPassword(ctx, "garbage", "another1"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid, got %v", err)
	}

	t.Run("rate limited", func(t *testing.T) {
		_ = svc.RequestPasswordReset(ctx, "salem@example.com")
		if err := svc.RequestPasswordReset(ctx, "salem@example.com"); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("send failure", func(t *testing.T) {
		failing := &mockEmailSender{err: errors.New("smtp down")}
		svc2, _ := newTestUserService(repo, failing)
		if err := svc2.RequestPasswordReset(ctx, "salem@example.com"); !errors.Is(err, ErrEmailSendFailure) {
			t.Fatalf("expected ErrEmailSendFailure, got %v", err)
		}
	})
}
