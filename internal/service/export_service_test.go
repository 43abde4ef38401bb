package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jenderlion/Quiz-bot/internal/errs"
	"github.com/Jenderlion/Quiz-bot/internal/models"
)

func TestFrequencyReport(t *testing.T) {
	f := newFixture()
	quiz := f.store.addQuiz(colorQuiz())
	svc := NewExportService(f.quizzes, f.answers)
	ctx := context.Background()

	alice := f.store.addUser(1, models.RoleUser)
	bob := f.store.addUser(2, models.RoleUser)
	for _, row := range []models.Answer{
		{InternalUserID: alice.InternalID, QuizID: quiz.ID, Ordinal: 1, Text: "Blue"},
		{InternalUserID: alice.InternalID, QuizID: quiz.ID, Ordinal: 2, Text: "It is calm"},
		{InternalUserID: alice.InternalID, QuizID: quiz.ID, Ordinal: 3, Text: "No"},
		{InternalUserID: bob.InternalID, QuizID: quiz.ID, Ordinal: 1, Text: "Red"},
		{InternalUserID: bob.InternalID, QuizID: quiz.ID, Ordinal: 2, Text: models.SkippedAnswer},
		{InternalUserID: bob.InternalID, QuizID: quiz.ID, Ordinal: 3, Text: "No"},
	} {
		row := row
		require.NoError(t, f.answers.CreateTx(ctx, nil, &row))
	}

	payload, err := svc.FrequencyReport(ctx, quiz.ID)
	require.NoError(t, err)

	var report FrequencyReport
	require.NoError(t, json.Unmarshal(payload, &report))

	assert.Equal(t, quiz.ID, report.QuizID)
	assert.Equal(t, "colors", report.Name)
	require.Len(t, report.Questions, 3)

	assert.Equal(t, map[string]int{"Blue": 1, "Red": 1}, report.Questions[0].Counts)
	// skip placeholders are counted like any other recorded text
	assert.Equal(t, map[string]int{"It is calm": 1, models.SkippedAnswer: 1}, report.Questions[1].Counts)
	assert.Equal(t, map[string]int{"No": 2}, report.Questions[2].Counts)
}

func TestFrequencyReportEmptyQuiz(t *testing.T) {
	f := newFixture()
	quiz := f.store.addQuiz(colorQuiz())
	svc := NewExportService(f.quizzes, f.answers)

	payload, err := svc.FrequencyReport(context.Background(), quiz.ID)
	require.NoError(t, err)

	var report FrequencyReport
	require.NoError(t, json.Unmarshal(payload, &report))

	// every ordinal is present even with zero respondents
	require.Len(t, report.Questions, 3)
	for _, question := range report.Questions {
		assert.Empty(t, question.Counts)
	}
}

func TestRawDumpExport(t *testing.T) {
	f := newFixture()
	quiz := f.store.addQuiz(colorQuiz())
	svc := NewExportService(f.quizzes, f.answers)
	ctx := context.Background()

	user := f.store.addUser(1, models.RoleUser)
	require.NoError(t, f.answers.CreateTx(ctx, nil, &models.Answer{
		InternalUserID: user.InternalID, QuizID: quiz.ID, Ordinal: 1, Text: "Green",
	}))

	payload, err := svc.RawDump(ctx, quiz.ID)
	require.NoError(t, err)

	var dump RawDump
	require.NoError(t, json.Unmarshal(payload, &dump))
	assert.Equal(t, quiz.ID, dump.QuizID)
	require.Len(t, dump.Rows, 1)
	assert.Equal(t, user.InternalID, dump.Rows[0].InternalUserID)
	assert.Equal(t, "Green", dump.Rows[0].Answer)
}

func TestExportUnknownQuiz(t *testing.T) {
	f := newFixture()
	svc := NewExportService(f.quizzes, f.answers)

	_, err := svc.FrequencyReport(context.Background(), 42)
	assert.ErrorIs(t, err, errs.ErrQuizNotFound)

	_, err = svc.RawDump(context.Background(), 42)
	assert.ErrorIs(t, err, errs.ErrQuizNotFound)
}
