package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/Jenderlion/Quiz-bot/internal/config"
	"github.com/Jenderlion/Quiz-bot/internal/repository"
	"github.com/Jenderlion/Quiz-bot/internal/service"
	"github.com/Jenderlion/Quiz-bot/pkg/logger"
	"github.com/Jenderlion/Quiz-bot/pkg/metrics"
)

const (
	pollTimeout = 30 * time.Second
	maxBackoff  = 30 * time.Second
)

// Bot is the chat transport adapter. It polls for updates, runs each one
// through the middleware chain and dispatches to a handler. All quiz and
// moderation semantics live in the services; the bot only translates.
type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics

	sessions   service.SessionService
	quizzes    service.QuizService
	moderation service.ModerationService
	mailing    service.MailingService
	export     service.ExportService

	users    repository.UserRepository
	msgLog   repository.MessageLogRepository
	throttle repository.ThrottleRepository

	started time.Time
}

type Deps struct {
	Sessions   service.SessionService
	Quizzes    service.QuizService
	Moderation service.ModerationService
	Export     service.ExportService

	Users    repository.UserRepository
	MsgLog   repository.MessageLogRepository
	Throttle repository.ThrottleRepository
}

func NewBot(cfg *config.Config, deps Deps, log *logger.Logger, m *metrics.Metrics) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	log.WithField("account", api.Self.UserName).Info("authorized on telegram")

	return &Bot{
		api:        api,
		cfg:        cfg,
		log:        log,
		metrics:    m,
		sessions:   deps.Sessions,
		quizzes:    deps.Quizzes,
		moderation: deps.Moderation,
		export:     deps.Export,
		users:      deps.Users,
		msgLog:     deps.MsgLog,
		throttle:   deps.Throttle,
		started:    time.Now(),
	}, nil
}

// Run polls for updates until the context is cancelled. Transport errors back
// off exponentially; a successful poll resets the backoff.
func (b *Bot) Run(ctx context.Context) error {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = int(pollTimeout.Seconds())

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.api.GetUpdates(updateCfg)
		if err != nil {
			b.log.WithField("error", err.Error()).Error("update poll failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		for _, update := range updates {
			updateCfg.Offset = update.UpdateID + 1
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate is the outermost stage: it never lets a panic escape into the
// poll loop and records one metric sample per update.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	started := time.Now()
	status := "ok"
	handler := "update"

	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			b.log.WithField("panic", fmt.Sprint(r)).Error("handler panicked")
		}
		b.metrics.ObserveHandler(handler, status, started)
	}()

	in, ok := b.intake(ctx, update)
	if !ok {
		status = "dropped"
		return
	}
	handler = in.handler

	if err := b.dispatch(ctx, in); err != nil {
		status = "error"
		in.log.WithField("error", err.Error()).Warn("update handling failed")
		b.reply(in.chatID, userFacing(err))
	}
}

// SetMailing wires the mailing service in after construction: the service
// needs the bot as its sender, so the two cannot be built in one step.
func (b *Bot) SetMailing(mailing service.MailingService) {
	b.mailing = mailing
}

// SendText implements the broadcast sender.
func (b *Bot) SendText(tgID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(tgID, text))
	return err
}

func (b *Bot) reply(chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.WithField("error", err.Error()).Warn("reply send failed")
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithField("error", err.Error()).Warn("send failed")
	}
}

func newRequestID() string {
	return uuid.NewString()
}
