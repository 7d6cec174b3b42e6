package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/email"
	"tabayyan/internal/repository"
)

var (
	ErrRatingInvalid        = errors.New("rating invalid")
	ErrStaffQuestionInvalid = errors.New("staff question invalid")
)

const (
	maxRatingText   = 8000
	maxQuestionBody = 4000
)

// RatingService guarda la valoracion de una respuesta del asistente.
type RatingService struct {
	repo   repository.RatingRepository
	logger *zap.Logger
}

func NewRatingService(repo repository.RatingRepository, logger *zap.Logger) *RatingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatingService{repo: repo, logger: logger}
}

type RateInput struct {
	UserID    string
	SessionID string
	Question  string
	Answer    string
	Score     int
	Comment   string
}

// Rate valida la puntuacion (1 a 5) y la persiste. Los invitados se guardan sin usuario.
func (s *RatingService) Rate(ctx context.Context, in RateInput) (domain.Rating, error) {
	if s == nil || s.repo == nil {
		return domain.Rating{}, errors.New("rating service not configured")
	}
	answer := strings.TrimSpace(in.Answer)
	if in.Score < 1 || in.Score > 5 || answer == "" {
		return domain.Rating{}, ErrRatingInvalid
	}
	if utf8.RuneCountInString(answer) > maxRatingText || utf8.RuneCountInString(in.Question) > maxRatingText {
		return domain.Rating{}, ErrRatingInvalid
	}

	userID := strings.TrimSpace(in.UserID)
	if IsGuestID(userID) {
		userID = ""
	}
	rating := domain.Rating{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: strings.TrimSpace(in.SessionID),
		Question:  strings.TrimSpace(in.Question),
		Answer:    answer,
		Score:     in.Score,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, rating); err != nil {
		return domain.Rating{}, err
	}
	s.logger.Info("rating received", zap.String("rating_id", rating.ID), zap.Int("score", rating.Score))
	return rating, nil
}

// StaffService recibe preguntas dirigidas al personal, las guarda y las reenvia por email.
type StaffService struct {
	repo       repository.StaffQuestionRepository
	sender     email.Sender
	staffEmail string
	logger     *zap.Logger
}

func NewStaffService(repo repository.StaffQuestionRepository, sender email.Sender, staffEmail string, logger *zap.Logger) *StaffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{
		repo:       repo,
		sender:     sender,
		staffEmail: strings.TrimSpace(staffEmail),
		logger:     logger,
	}
}

// Submit persiste la pregunta. Un fallo de email se registra pero no se devuelve:
// la pregunta ya quedo guardada.
func (s *StaffService) Submit(ctx context.Context, user domain.User, subject, body string) (domain.StaffQuestion, error) {
	if s == nil || s.repo == nil {
		return domain.StaffQuestion{}, errors.New("staff service not configured")
	}
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > maxQuestionBody || user.ID == "" || IsGuestID(user.ID) {
		return domain.StaffQuestion{}, ErrStaffQuestionInvalid
	}
	if subject == "" {
		subject = "سؤال للموظفين"
	}

	q := domain.StaffQuestion{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return domain.StaffQuestion{}, err
	}

	if s.sender != nil && s.staffEmail != "" {
		err := s.sender.SendStaffQuestion(ctx, s.staffEmail, email.StaffQuestion{
			FromUsername: user.Username,
			FromEmail:    user.Email,
			Subject:      subject,
			Body:         body,
		})
		if err != nil {
			s.logger.Warn("notify staff failed", zap.String("question_id", q.ID), zap.Error(err))
		}
	}
	return q, nil
}
