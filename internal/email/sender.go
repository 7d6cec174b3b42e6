package email

import (
	"context"
	"errors"
	"time"
)

// StaffQuestion es el contenido enviado al buzon del personal.
type StaffQuestion struct {
	FromUsername string
	FromEmail    string
	Subject      string
	Body         string
}

// Sender define la interfaz para envio de correos transaccionales.
type Sender interface {
	SendStaffQuestion(ctx context.Context, toEmail string, q StaffQuestion) error
	SendPasswordReset(ctx context.Context, toEmail string, resetURL string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendStaffQuestion(_ context.Context, _ string, _ StaffQuestion) error {
	return s.err()
}

func (s *disabledSender) SendPasswordReset(_ context.Context, _ string, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
