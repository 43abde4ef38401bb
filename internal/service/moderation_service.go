package service

import (
	"context"
	"time"

	"github.com/Jenderlion/Quiz-bot/internal/errs"
	"github.com/Jenderlion/Quiz-bot/internal/models"
	"github.com/Jenderlion/Quiz-bot/internal/repository"
	"github.com/Jenderlion/Quiz-bot/pkg/logger"
)

// Capability is one gated operation class.
type Capability string

const (
	CapHelp             Capability = "help"
	CapTakeQuiz         Capability = "take_quiz"
	CapRewrite          Capability = "rewrite"
	CapMailing          Capability = "mailing"
	CapUploadQuiz       Capability = "upload_quiz"
	CapToggleVisibility Capability = "toggle_visibility"
	CapExport           Capability = "export"
	CapBan              Capability = "ban"
	CapBroadcast        Capability = "broadcast"
	CapManageRoles      Capability = "manage_roles"
)

// capabilityFloor is the minimum role granting each capability.
var capabilityFloor = map[Capability]models.Role{
	CapHelp:             models.RoleUser,
	CapTakeQuiz:         models.RoleUser,
	CapRewrite:          models.RoleUser,
	CapMailing:          models.RoleUser,
	CapUploadQuiz:       models.RoleEditor,
	CapToggleVisibility: models.RoleAdmin,
	CapExport:           models.RoleAdmin,
	CapBan:              models.RoleAdmin,
	CapBroadcast:        models.RoleAdmin,
	CapManageRoles:      models.RoleSuperAdmin,
}

// DefaultUnbanReason is recorded when a human unban gives no reason.
const DefaultUnbanReason = "mercy"

// ModerationService gates operations by role and ban state, and owns the ban
// lifecycle including the expiry sweep.
type ModerationService interface {
	Authorize(ctx context.Context, tgID int64, capability Capability) (*models.User, error)
	Ban(ctx context.Context, initiatorTG, subjectTG int64, reason, duration string) (*models.Ban, error)
	Unban(ctx context.Context, subjectTG int64, reason string) error
	SetRole(ctx context.Context, initiatorTG, subjectTG int64, role models.Role) error
	SweepOnce(ctx context.Context) (int, error)
	RunExpirySweep(ctx context.Context, interval time.Duration, onSweep func(processed int))
}

type moderationService struct {
	userRepo repository.UserRepository
	banRepo  repository.BanRepository
	locks    *UserLocks
	log      *logger.Logger
}

func NewModerationService(
	userRepo repository.UserRepository,
	banRepo repository.BanRepository,
	locks *UserLocks,
	log *logger.Logger,
) ModerationService {
	return &moderationService{
		userRepo: userRepo,
		banRepo:  banRepo,
		locks:    locks,
		log:      log,
	}
}

// Authorize returns the user when the capability is granted. Banned users
// keep only the help path.
func (s *moderationService) Authorize(ctx context.Context, tgID int64, capability Capability) (*models.User, error) {
	user, err := s.userRepo.GetByTGID(ctx, tgID)
	if err != nil {
		return nil, errs.Store(err)
	}
	if user == nil {
		return nil, errs.ErrUserNotFound
	}

	if user.Banned && capability != CapHelp {
		return nil, errs.ErrBanned
	}

	floor, ok := capabilityFloor[capability]
	if !ok || !user.Role.AtLeast(floor) {
		return nil, errs.ErrNotAuthorized
	}
	return user, nil
}

func (s *moderationService) Ban(ctx context.Context, initiatorTG, subjectTG int64, reason, duration string) (*models.Ban, error) {
	initiator, err := s.Authorize(ctx, initiatorTG, CapBan)
	if err != nil {
		return nil, err
	}

	length, err := ParseBanDuration(duration)
	if err != nil {
		return nil, err
	}

	subject, err := s.userRepo.GetByTGID(ctx, subjectTG)
	if err != nil {
		return nil, errs.Store(err)
	}
	if subject == nil {
		return nil, errs.ErrUserNotFound
	}
	if subject.Role == models.RoleSuperAdmin {
		return nil, errs.ErrCannotBanSuperAdmin
	}

	unlock := s.locks.Lock(subject.InternalID)
	defer unlock()

	active, err := s.banRepo.ActiveByUser(ctx, subject.InternalID)
	if err != nil {
		return nil, errs.Store(err)
	}
	if active != nil {
		return nil, errs.ErrAlreadyBanned
	}

	now := time.Now()
	ban := &models.Ban{
		InternalUserID: subject.InternalID,
		TGUserID:       subject.TGUserID,
		InitiatorID:    initiator.InternalID,
		Reason:         reason,
		BanTime:        now,
		UnbanTime:      now.Add(length),
	}
	if _, err := s.banRepo.Create(ctx, ban); err != nil {
		return nil, errs.Store(err)
	}
	if err := s.userRepo.UpdateRole(ctx, subject.InternalID, models.RoleUser); err != nil {
		return nil, errs.Store(err)
	}
	if err := s.userRepo.UpdateBanned(ctx, subject.InternalID, true); err != nil {
		return nil, errs.Store(err)
	}

	s.log.WithUserID(subject.TGUserID).WithField("until", ban.UnbanTime).Info("user banned")
	return ban, nil
}

// Unban lifts a ban. It is idempotent: unbanning an unbanned subject is a
// no-op, which lets the expiry sweep and a human-initiated unban race safely.
func (s *moderationService) Unban(ctx context.Context, subjectTG int64, reason string) error {
	if reason == "" {
		reason = DefaultUnbanReason
	}

	subject, err := s.userRepo.GetByTGID(ctx, subjectTG)
	if err != nil {
		return errs.Store(err)
	}
	if subject == nil {
		return errs.ErrUserNotFound
	}

	unlock := s.locks.Lock(subject.InternalID)
	defer unlock()

	return s.unbanLocked(ctx, subject.InternalID, subject.TGUserID, reason)
}

func (s *moderationService) unbanLocked(ctx context.Context, internalID uint64, tgID int64, reason string) error {
	subject, err := s.userRepo.GetByInternalID(ctx, internalID)
	if err != nil {
		return errs.Store(err)
	}
	if subject == nil {
		return errs.ErrUserNotFound
	}

	active, err := s.banRepo.ActiveByUser(ctx, internalID)
	if err != nil {
		return errs.Store(err)
	}

	if !subject.Banned && active == nil {
		return nil
	}

	if active != nil {
		if err := s.banRepo.Deactivate(ctx, active.ID); err != nil {
			return errs.Store(err)
		}
	}
	if subject.Banned {
		if err := s.userRepo.UpdateBanned(ctx, internalID, false); err != nil {
			return errs.Store(err)
		}
	}

	s.log.WithUserID(tgID).WithField("reason", reason).Info("user unbanned")
	return nil
}

func (s *moderationService) SetRole(ctx context.Context, initiatorTG, subjectTG int64, role models.Role) error {
	if _, err := s.Authorize(ctx, initiatorTG, CapManageRoles); err != nil {
		return err
	}
	if !role.Valid() || role == models.RoleSuperAdmin {
		return errs.ErrNotAuthorized
	}

	subject, err := s.userRepo.GetByTGID(ctx, subjectTG)
	if err != nil {
		return errs.Store(err)
	}
	if subject == nil {
		return errs.ErrUserNotFound
	}
	if subject.Role == models.RoleSuperAdmin {
		return errs.ErrNotAuthorized
	}

	if err := s.userRepo.UpdateRole(ctx, subject.InternalID, role); err != nil {
		return errs.Store(err)
	}
	s.log.WithUserID(subject.TGUserID).WithField("role", role).Info("role updated")
	return nil
}

// SweepOnce scans active ban records whose end has passed and lifts each one.
// Per-subject locking keeps it from racing a concurrent human unban; the
// idempotent unban makes a lost race harmless.
func (s *moderationService) SweepOnce(ctx context.Context) (int, error) {
	expired, err := s.banRepo.ListActiveExpired(ctx, time.Now())
	if err != nil {
		return 0, errs.Store(err)
	}

	processed := 0
	for _, ban := range expired {
		unlock := s.locks.Lock(ban.InternalUserID)
		err := s.unbanLocked(ctx, ban.InternalUserID, ban.TGUserID, "ban expired")
		unlock()
		if err != nil {
			s.log.WithUserID(ban.TGUserID).WithField("error", err.Error()).Error("sweep unban failed")
			continue
		}
		processed++
	}
	return processed, nil
}

// RunExpirySweep polls until the context is cancelled. This is reconciliation,
// not event scheduling: a missed tick just delays the unban one interval.
func (s *moderationService) RunExpirySweep(ctx context.Context, interval time.Duration, onSweep func(processed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := s.SweepOnce(ctx)
			if err != nil {
				s.log.WithField("error", err.Error()).Error("ban sweep failed")
				continue
			}
			if onSweep != nil {
				onSweep(processed)
			}
		}
	}
}
