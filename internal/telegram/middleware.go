package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Jenderlion/Quiz-bot/internal/models"
)

// inbound is one update after the middleware chain: identity resolved, message
// logged, rate and ban gates passed.
type inbound struct {
	update  tgbotapi.Update
	tgID    int64
	chatID  int64
	text    string
	command string
	handler string
	user    *models.User
	log     *logrus.Entry
}

// intake runs the middleware chain. A false return means the update was
// dropped; every drop is logged with the request id.
func (b *Bot) intake(ctx context.Context, update tgbotapi.Update) (*inbound, bool) {
	in, ok := b.classify(update)
	if !ok {
		return nil, false
	}
	in.log = b.log.WithRequestID(newRequestID()).WithField("user_id", in.tgID)

	if !b.ensureUser(ctx, in) {
		return nil, false
	}
	b.logMessage(ctx, in)
	if !b.rateGuard(ctx, in) {
		return nil, false
	}
	if !b.banGate(in) {
		return nil, false
	}
	return in, true
}

// classify extracts the pieces the chain needs. Updates that carry neither a
// message nor a callback are ignored.
func (b *Bot) classify(update tgbotapi.Update) (*inbound, bool) {
	switch {
	case update.Message != nil:
		in := &inbound{
			update:  update,
			tgID:    update.Message.From.ID,
			chatID:  update.Message.Chat.ID,
			text:    update.Message.Text,
			command: update.Message.Command(),
			handler: "message",
		}
		if in.command != "" {
			in.handler = in.command
		}
		if update.Message.Document != nil {
			in.handler = "upload"
		}
		return in, true
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			return nil, false
		}
		return &inbound{
			update:  update,
			tgID:    cb.From.ID,
			chatID:  cb.Message.Chat.ID,
			text:    cb.Data,
			handler: "callback",
		}, true
	default:
		return nil, false
	}
}

// ensureUser registers first-contact users and keeps the configured super
// admin's role pinned.
func (b *Bot) ensureUser(ctx context.Context, in *inbound) bool {
	user, err := b.users.GetByTGID(ctx, in.tgID)
	if err != nil {
		in.log.WithField("error", err.Error()).Error("user lookup failed")
		return false
	}
	if user == nil {
		user, err = b.users.Create(ctx, in.tgID)
		if err != nil {
			in.log.WithField("error", err.Error()).Error("user registration failed")
			return false
		}
		in.log.Info("new user registered")
	}

	if in.tgID == b.cfg.SuperAdminTGID && user.Role != models.RoleSuperAdmin {
		if err := b.users.UpdateRole(ctx, user.InternalID, models.RoleSuperAdmin); err != nil {
			in.log.WithField("error", err.Error()).Error("super admin promotion failed")
			return false
		}
		user.Role = models.RoleSuperAdmin
	}

	in.user = user
	return true
}

// logMessage records the inbound event. Failures are logged and ignored; the
// audit trail never blocks handling.
func (b *Bot) logMessage(ctx context.Context, in *inbound) {
	entry := &models.MessageLog{
		TGUserID:  in.tgID,
		Text:      in.text,
		Timestamp: time.Now(),
	}
	if err := b.msgLog.Create(ctx, entry); err != nil {
		in.log.WithField("error", err.Error()).Warn("message log write failed")
	}
}

// rateGuard drops updates arriving faster than the configured minimum
// interval. It is advisory: a redis failure lets the update through.
func (b *Bot) rateGuard(ctx context.Context, in *inbound) bool {
	now := time.Now()
	last, err := b.throttle.LastSeen(ctx, in.tgID)
	if err != nil {
		in.log.WithField("error", err.Error()).Warn("rate guard lookup failed")
		return true
	}
	if !last.IsZero() && now.Sub(last) < b.cfg.RateMinInterval {
		b.metrics.ThrottledUpdates.Inc()
		in.log.Debug("update throttled")
		return false
	}
	if err := b.throttle.Touch(ctx, in.tgID, now); err != nil {
		in.log.WithField("error", err.Error()).Warn("rate guard touch failed")
	}
	return true
}

// banGate keeps banned users out of everything except the help path.
func (b *Bot) banGate(in *inbound) bool {
	if !in.user.Banned {
		return true
	}
	if in.command == "help" || in.command == "start" {
		return true
	}
	b.reply(in.chatID, "You are banned. Only /help is available.")
	return false
}
