package service

import (
	"context"

	"github.com/Jenderlion/Quiz-bot/internal/errs"
	"github.com/Jenderlion/Quiz-bot/internal/repository"
	"github.com/Jenderlion/Quiz-bot/pkg/logger"
)

// Sender delivers outbound texts; the transport adapter implements it.
type Sender interface {
	SendText(tgID int64, text string) error
}

// MailingService owns the opt-in flag and admin broadcasts.
type MailingService interface {
	Toggle(ctx context.Context, tgID int64, value string) error
	Broadcast(ctx context.Context, text string) (int, error)
}

type mailingService struct {
	userRepo repository.UserRepository
	sender   Sender
	log      *logger.Logger
}

func NewMailingService(userRepo repository.UserRepository, sender Sender, log *logger.Logger) MailingService {
	return &mailingService{
		userRepo: userRepo,
		sender:   sender,
		log:      log,
	}
}

func (s *mailingService) Toggle(ctx context.Context, tgID int64, value string) error {
	opted, err := ParseBoolStrict(value)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByTGID(ctx, tgID)
	if err != nil {
		return errs.Store(err)
	}
	if user == nil {
		return errs.ErrUserNotFound
	}

	if err := s.userRepo.UpdateMailing(ctx, user.InternalID, opted); err != nil {
		return errs.Store(err)
	}
	return nil
}

// Broadcast sends the text to every opted-in, unbanned user. Per-user send
// failures are logged and skipped; the broadcast keeps going.
func (s *mailingService) Broadcast(ctx context.Context, text string) (int, error) {
	users, err := s.userRepo.ListMailing(ctx)
	if err != nil {
		return 0, errs.Store(err)
	}

	sent := 0
	for _, user := range users {
		if err := s.sender.SendText(user.TGUserID, text); err != nil {
			s.log.WithUserID(user.TGUserID).WithField("error", err.Error()).Warn("broadcast send failed")
			continue
		}
		sent++
	}
	return sent, nil
}
