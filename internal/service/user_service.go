package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tabayyan/internal/domain"
	"tabayyan/internal/email"
	"tabayyan/internal/repository"
)

// ResetTokens emite y valida tokens de reset de password. JWTService lo implementa.
type ResetTokens interface {
	GenerateResetToken(user domain.User) (string, time.Time, error)
	ParseResetToken(token string) (Claims, error)
}

// UserService coordina reglas de negocio para usuarios.
type UserService struct {
	logger        *zap.Logger
	users         repository.UserRepository
	emailSender   email.Sender
	resetTokens   ResetTokens
	resetLimiter  RateLimiter
	publicBaseURL string
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	emailSender email.Sender,
	resetTokens ResetTokens,
	resetLimiter RateLimiter,
	publicBaseURL string,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resetLimiter == nil {
		resetLimiter = NewRateLimiter(15*time.Minute, 3)
	}
	return &UserService{
		logger:        logger,
		users:         users,
		emailSender:   emailSender,
		resetTokens:   resetTokens,
		resetLimiter:  resetLimiter,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("password too short")
	ErrResetTokenInvalid  = errors.New("reset token invalid")
	ErrRateLimited        = errors.New("rate limited")
	ErrEmailSendFailure   = errors.New("email send failed")
)

const (
	minPasswordLen = 6
	maxUsernameLen = 80
)

// Register crea una cuenta nueva con username y email unicos.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	username := strings.TrimSpace(input.Username)
	emailAddr := normalizeEmail(input.Email)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLen || strings.Contains(username, "@") {
		return domain.User{}, ErrInvalidUsername
	}
	if !isValidEmail(emailAddr) {
		return domain.User{}, ErrInvalidEmail
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLen {
		return domain.User{}, ErrWeakPassword
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return domain.User{}, ErrUsernameTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        emailAddr,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, uniqueViolation(err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Authenticate valida credenciales; identifier puede ser username o email.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

// RequestPasswordReset envia un enlace de reset si el email existe.
// Un email desconocido no es un error para no revelar cuentas registradas.
func (s *UserService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}
	emailAddr = normalizeEmail(emailAddr)
	if !isValidEmail(emailAddr) {
		return ErrInvalidEmail
	}
	if !s.resetLimiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Info("password reset for unknown email")
			return nil
		}
		return err
	}
	if s.resetTokens == nil || s.emailSender == nil {
		return ErrEmailSendFailure
	}

	token, expiresAt, err := s.resetTokens.GenerateResetToken(user)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	link := s.publicBaseURL + "/reset-password/" + url.PathEscape(token)
	if err := s.emailSender.SendPasswordReset(ctx, user.Email, link, expiresAt); err != nil {
		s.logger.Warn("send password reset failed", zap.Error(err), zap.String("user_id", user.ID))
		return ErrEmailSendFailure
	}
	return nil
}

// ResetPassword cambia la password si el token es valido y no fue usado.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if s.users == nil || s.resetTokens == nil {
		return errors.New("user service not configured")
	}
	claims, err := s.resetTokens.ParseResetToken(token)
	if err != nil {
		return ErrResetTokenInvalid
	}
	if utf8.RuneCountInString(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrResetTokenInvalid
		}
		return err
	}
	if !claims.MatchesPassword(user.PasswordHash) {
		return ErrResetTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(emailAddr string) bool {
	if emailAddr == "" {
		return false
	}
	addr, err := mail.ParseAddress(emailAddr)
	return err == nil && addr.Address == emailAddr
}
