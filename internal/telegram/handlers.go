package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Jenderlion/Quiz-bot/internal/compiler"
	"github.com/Jenderlion/Quiz-bot/internal/errs"
	"github.com/Jenderlion/Quiz-bot/internal/models"
	"github.com/Jenderlion/Quiz-bot/internal/service"
)

// maxQuizFileSize caps uploaded quiz definitions.
const maxQuizFileSize = 256 * 1024

func (b *Bot) dispatch(ctx context.Context, in *inbound) error {
	if in.update.CallbackQuery != nil {
		return b.handleCallback(ctx, in)
	}
	if in.update.Message.Document != nil {
		return b.handleUpload(ctx, in)
	}

	switch in.command {
	case "start", "help":
		return b.handleHelp(ctx, in)
	case "quizzes":
		return b.handleQuizList(ctx, in)
	case "rewrite":
		return b.handleRewriteMenu(ctx, in)
	case "mailing":
		return b.handleMailing(ctx, in)
	case "broadcast":
		return b.handleBroadcast(ctx, in)
	case "ban":
		return b.handleBan(ctx, in)
	case "unban":
		return b.handleUnban(ctx, in)
	case "setrole":
		return b.handleSetRole(ctx, in)
	case "visibility":
		return b.handleVisibility(ctx, in)
	case "quizlist":
		return b.handleFullQuizList(ctx, in)
	case "export":
		return b.handleExport(ctx, in)
	case "status":
		return b.handleStatus(ctx, in)
	case "":
		return b.handleText(ctx, in)
	default:
		b.reply(in.chatID, "Unknown command. See /help.")
		return nil
	}
}

// handleText feeds free text into the active session.
func (b *Bot) handleText(ctx context.Context, in *inbound) error {
	if in.user.Session == nil {
		b.reply(in.chatID, "No active quiz. Pick one with /quizzes.")
		return nil
	}
	step, err := b.sessions.SubmitAnswer(ctx, in.tgID, in.text)
	if err != nil {
		return err
	}
	b.sendStep(in.chatID, step)
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, in *inbound) error {
	cb := in.update.CallbackQuery
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		in.log.WithField("error", err.Error()).Warn("callback ack failed")
	}

	parts := strings.Split(cb.Data, ":")
	switch parts[0] {
	case "take":
		if len(parts) != 2 {
			return nil
		}
		quizID, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil
		}
		step, err := b.sessions.StartQuiz(ctx, in.tgID, quizID)
		if err != nil {
			return err
		}
		b.sendStep(in.chatID, step)
		return nil

	case "rewrite":
		if len(parts) != 2 {
			return nil
		}
		quizID, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil
		}
		return b.sendRewriteQuestions(ctx, in, quizID)

	case "rewriteq":
		if len(parts) != 3 {
			return nil
		}
		quizID, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil
		}
		ordinal, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil
		}
		step, err := b.sessions.BeginRewrite(ctx, in.tgID, quizID, ordinal)
		if err != nil {
			return err
		}
		b.sendStep(in.chatID, step)
		return nil

	default:
		return nil
	}
}

func (b *Bot) handleHelp(ctx context.Context, in *inbound) error {
	user, err := b.moderation.Authorize(ctx, in.tgID, service.CapHelp)
	if err != nil {
		return err
	}
	b.reply(in.chatID, helpText(user))
	return nil
}

func (b *Bot) handleQuizList(ctx context.Context, in *inbound) error {
	if _, err := b.moderation.Authorize(ctx, in.tgID, service.CapTakeQuiz); err != nil {
		return err
	}
	quizzes, err := b.sessions.AvailableQuizzes(ctx, in.tgID)
	if err != nil {
		return err
	}
	if len(quizzes) == 0 {
		b.reply(in.chatID, "No quizzes available right now.")
		return nil
	}
	msg := tgbotapi.NewMessage(in.chatID, "Available quizzes:")
	msg.ReplyMarkup = quizKeyboard(quizzes, "take")
	b.send(msg)
	return nil
}

func (b *Bot) handleRewriteMenu(ctx context.Context, in *inbound) error {
	if _, err := b.moderation.Authorize(ctx, in.tgID, service.CapRewrite); err != nil {
		return err
	}
	quizzes, err := b.sessions.CompletedQuizzes(ctx, in.tgID)
	if err != nil {
		return err
	}
	if len(quizzes) == 0 {
		b.reply(in.chatID, "You have not completed any quiz yet.")
		return nil
	}
	msg := tgbotapi.NewMessage(in.chatID, "Pick the quiz to correct:")
	msg.ReplyMarkup = quizKeyboard(quizzes, "rewrite")
	b.send(msg)
	return nil
}

func (b *Bot) sendRewriteQuestions(ctx context.Context, in *inbound, quizID uint64) error {
	summaries, err := b.sessions.CompletedQuizSummary(ctx, in.tgID, quizID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(in.chatID, "Pick the question to answer again:")
	msg.ReplyMarkup = questionKeyboard(quizID, summaries)
	b.send(msg)
	return nil
}

func (b *Bot) handleMailing(ctx context.Context, in *inbound) error {
	if _, err := b.moderation.Authorize(ctx, in.tgID, service.CapMailing); err != nil {
		return err
	}
	arg := strings.TrimSpace(in.update.Message.CommandArguments())
	if arg == "" {
		b.reply(in.chatID, "Usage: /mailing true|false")
		return nil
	}
	if err := b.mailing.Toggle(ctx, in.tgID, arg); err != nil {
		return err
	}
	b.reply(in.chatID, "Mailing preference saved.")
	return nil
}

func (b *Bot) handleBroadcast(ctx context.Context, in *inbound) error {
	if _, err := b.moderation.Authorize(ctx, in.tgID, service.CapBroadcast); err != nil {
		return err
	}
	text := strings.TrimSpace(in.update.Message.CommandArguments())
	if text == "" {
		b.reply(in.chatID, "Usage: /broadcast <text>")
		return nil
	}
	sent, err := b.mailing.Broadcast(ctx, text)
	if err != nil {
		return err
	}
	b.reply(in.chatID, fmt.Sprintf("Broadcast delivered to %d users.", sent))
	return nil
}

func (b *Bot) handleBan(ctx context.Context, in *inbound) error {
	args := strings.Fields(in.update.Message.CommandArguments())
	if len(args) < 2 {
		b.reply(in.chatID, "Usage: /ban <tg_id> <duration> [reason]")
		return nil
	}
	subjectTG, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(in.chatID, "Subject id must be a number.")
		return nil
	}
	reason := "no reason given"
	if len(args) > 2 {
		reason = strings.Join(args[2:], " ")
	}
	ban, err := b.moderation.Ban(ctx, in.tgID, subjectTG, reason, args[1])
	if err != nil {
		return err
	}
	b.reply(in.chatID, fmt.Sprintf("User %d banned until %s.", subjectTG, ban.UnbanTime.Format(time.RFC3339)))
	return nil
}

func (b *Bot) handleUnban(ctx context.Context, in *inbound) error {
	if _, err := b.moderation.Authorize(ctx, in.tgID, service.CapBan); err != nil {
		return err
	}
	args := strings.Fields(in.update.Message.CommandArguments())
	if len(args) < 1 {
		b.reply(in.chatID, "Usage: /unban <tg_id> [reason]")
		return nil
	}
	subjectTG, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(in.chatID, "Subject id must be a number.")
		return nil
	}
	reason := ""
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}
	if err := b.moderation.Unban(ctx, subjectTG, reason); err != nil {
		return err
	}
	b.reply(in.chatID, fmt.Sprintf("User %d is not banned anymore.", subjectTG))
	return nil
}

func (b *Bot) handleSetRole(ctx context.Context, in *inbound) error {
	args := strings.Fields(in.update.Message.CommandArguments())
	if len(args) != 2 {
		b.reply(in.chatID, "Usage: /setrole <tg_id> <user|editor|admin>")
		return nil
	}
	subjectTG, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(in.chatID, "Subject id must be a number.")
		return nil
	}
	if err := b.moderation.SetRole(ctx, in.tgID, subjectTG, models.Role(args[1])); err != nil {
		return err
	}
	b.reply(in.chatID, fmt.Sprintf("User %d is now %s.", subjectTG, args[1]))
	return nil
}

func (b *Bot) handleVisibility(ctx context.Context, in *inbound) error {
	if _, err := b.moderation.Authorize(ctx, in.tgID, service.CapToggleVisibility); err != nil {
		return err
	}
	args := strings.Fields(in.update.Message.CommandArguments())
	if len(args) != 2 {
		b.reply(in.chatID, "Usage: /visibility <quiz_id> true|false")
		return nil
	}
	quizID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		b.reply(in.chatID, "Quiz id must be a number.")
		return nil
	}
	if err := b.quizzes.SetVisibility(ctx, quizID, args[1]); err != nil {
		return err
	}
	b.reply(in.chatID, "Visibility updated.")
	return nil
}

func (b *Bot) handleFullQuizList(ctx context.Context, in *inbound) error {
	if _, err := b.moderation.Authorize(ctx, in.tgID, service.CapToggleVisibility); err != nil {
		return err
	}
	quizzes, err := b.quizzes.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(quizzes) == 0 {
		b.reply(in.chatID, "No quizzes published yet.")
		return nil
	}
	var sb strings.Builder
	sb.WriteString("All quizzes:\n")
	for _, quiz := range quizzes {
		visibility := "hidden"
		if quiz.Visible {
			visibility = "visible"
		}
		fmt.Fprintf(&sb, "%d. %s (%s, %s)\n", quiz.ID, quiz.Title, quiz.Name, visibility)
	}
	b.reply(in.chatID, sb.String())
	return nil
}

func (b *Bot) handleExport(ctx context.Context, in *inbound) error {
	if _, err := b.moderation.Authorize(ctx, in.tgID, service.CapExport); err != nil {
		return err
	}
	args := strings.Fields(in.update.Message.CommandArguments())
	if len(args) < 1 {
		b.reply(in.chatID, "Usage: /export <quiz_id> [raw]")
		return nil
	}
	quizID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		b.reply(in.chatID, "Quiz id must be a number.")
		return nil
	}

	var payload []byte
	name := fmt.Sprintf("quiz_%d_report.json", quizID)
	if len(args) > 1 && args[1] == "raw" {
		payload, err = b.export.RawDump(ctx, quizID)
		name = fmt.Sprintf("quiz_%d_dump.json", quizID)
	} else {
		payload, err = b.export.FrequencyReport(ctx, quizID)
	}
	if err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(in.chatID, tgbotapi.FileBytes{Name: name, Bytes: payload})
	b.send(doc)
	return nil
}

func (b *Bot) handleStatus(ctx context.Context, in *inbound) error {
	user, err := b.moderation.Authorize(ctx, in.tgID, service.CapHelp)
	if err != nil {
		return err
	}
	status := fmt.Sprintf("Role: %s\nUptime: %s", user.Role, time.Since(b.started).Round(time.Second))
	if user.Session != nil {
		status += fmt.Sprintf("\nActive quiz: %d, question %d", user.Session.QuizID, user.Session.Ordinal)
	}
	b.reply(in.chatID, status)
	return nil
}

// handleUpload ingests an uploaded quiz definition file.
func (b *Bot) handleUpload(ctx context.Context, in *inbound) error {
	if _, err := b.moderation.Authorize(ctx, in.tgID, service.CapUploadQuiz); err != nil {
		return err
	}

	doc := in.update.Message.Document
	if doc.FileSize > maxQuizFileSize {
		b.reply(in.chatID, "Quiz file is too large.")
		return nil
	}

	raw, err := b.downloadFile(doc.FileID)
	if err != nil {
		return fmt.Errorf("failed to download quiz file: %w", err)
	}

	quiz, err := b.quizzes.Ingest(ctx, doc.FileName, raw)
	if err != nil {
		return err
	}
	b.reply(in.chatID, fmt.Sprintf(
		"Quiz %q published with %d questions (id %d, hidden). Use /visibility %d true to open it.",
		quiz.Title, len(quiz.Questions), quiz.ID, quiz.ID,
	))
	return nil
}

func (b *Bot) downloadFile(fileID string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", err
	}
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxQuizFileSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxQuizFileSize {
		return "", fmt.Errorf("file exceeds %d bytes", maxQuizFileSize)
	}
	return string(data), nil
}

// sendStep translates a session transition into chat messages.
func (b *Bot) sendStep(chatID int64, step *service.Step) {
	switch step.Kind {
	case service.StepQuestion:
		msg := tgbotapi.NewMessage(chatID, step.Question.Text)
		if step.Question.FreeText() {
			msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
		} else {
			msg.ReplyMarkup = optionsKeyboard(step.Question)
		}
		b.send(msg)
	case service.StepCompleted:
		b.metrics.SessionsCompleted.Inc()
		msg := tgbotapi.NewMessage(chatID, step.Text)
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
		b.send(msg)
	case service.StepRewritten:
		msg := tgbotapi.NewMessage(chatID, "Answer updated. Thank you!")
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
		b.send(msg)
	}
}

// userFacing maps the error taxonomy onto reply texts. Store failures stay
// generic; the details go to the log, not the chat.
func userFacing(err error) string {
	var malformed *compiler.MalformedQuizError
	if errors.As(err, &malformed) {
		return fmt.Sprintf("Quiz file rejected: %s.", malformed.Reason)
	}

	switch {
	case errors.Is(err, errs.ErrSessionActive):
		return "Finish the current quiz first."
	case errors.Is(err, errs.ErrNoActiveSession):
		return "No active quiz. Pick one with /quizzes."
	case errors.Is(err, errs.ErrQuizAlreadyCompleted):
		return "You already completed this quiz. Use /rewrite to correct answers."
	case errors.Is(err, errs.ErrQuizNotCompleted):
		return "You have not completed this quiz."
	case errors.Is(err, errs.ErrQuizNameTaken):
		return "A quiz with this internal name already exists."
	case errors.Is(err, errs.ErrAlreadyBanned):
		return "This user is already banned."
	case errors.Is(err, errs.ErrCannotBanSuperAdmin):
		return "The super admin cannot be banned."
	case errors.Is(err, errs.ErrBanned):
		return "You are banned. Only /help is available."
	case errors.Is(err, errs.ErrBadDuration):
		return "Duration must look like 30s, 5m, 12h or 7d."
	case errors.Is(err, errs.ErrBadBool):
		return "The flag must be exactly true or false."
	case errors.Is(err, errs.ErrUserNotFound):
		return "Unknown user."
	case errors.Is(err, errs.ErrQuestionNotFound):
		return "This quiz has no such question."
	case errors.Is(err, errs.ErrNotFound):
		return "Not found."
	case errors.Is(err, errs.ErrPermission):
		return "You are not allowed to do that."
	case errors.Is(err, errs.ErrValidation):
		return "Invalid input."
	default:
		return "Something went wrong, please try again later."
	}
}

func helpText(user *models.User) string {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	sb.WriteString("/quizzes - list quizzes you can take\n")
	sb.WriteString("/rewrite - correct an answer in a completed quiz\n")
	sb.WriteString("/mailing true|false - toggle announcement mailing\n")
	sb.WriteString("/status - your current state\n")
	if user.Role.AtLeast(models.RoleEditor) {
		sb.WriteString("\nEditor:\nSend a quiz definition file to publish it.\n")
	}
	if user.Role.AtLeast(models.RoleAdmin) {
		sb.WriteString("\nAdmin:\n")
		sb.WriteString("/quizlist - all quizzes with visibility\n")
		sb.WriteString("/visibility <id> true|false\n")
		sb.WriteString("/export <id> [raw]\n")
		sb.WriteString("/ban <tg_id> <duration> [reason]\n")
		sb.WriteString("/unban <tg_id> [reason]\n")
		sb.WriteString("/broadcast <text>\n")
	}
	if user.Role.AtLeast(models.RoleSuperAdmin) {
		sb.WriteString("\nSuper admin:\n/setrole <tg_id> <role>\n")
	}
	return sb.String()
}
