package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Jenderlion/Quiz-bot/internal/models"
)

// quizKeyboard lists quizzes one per row; the callback carries the action
// prefix and the quiz id.
func quizKeyboard(quizzes []models.Quiz, action string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, quiz := range quizzes {
		data := fmt.Sprintf("%s:%d", action, quiz.ID)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(quiz.Title, data),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// questionKeyboard lists a completed quiz's questions for rewrite selection.
// Conditional questions are marked so the user knows a changed prerequisite
// does not re-open them.
func questionKeyboard(quizID uint64, summaries []models.QuestionSummary) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, summary := range summaries {
		label := summary.Text
		if summary.Relation != nil {
			label = fmt.Sprintf("%s (asked after %d: %s)", summary.Text, summary.Relation.PrereqOrdinal, summary.Relation.RequiredAnswer)
		}
		data := fmt.Sprintf("rewriteq:%d:%d", quizID, summary.Ordinal)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, data),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// optionsKeyboard builds the one-time reply keyboard for a closed question.
func optionsKeyboard(question *models.Question) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for _, option := range question.Options {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(option)))
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.OneTimeKeyboard = true
	return keyboard
}
