package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Jenderlion/Quiz-bot/internal/errs"
	"github.com/Jenderlion/Quiz-bot/internal/repository"
)

// FrequencyReport is the aggregate per-question answer-frequency document.
type FrequencyReport struct {
	QuizID    uint64                `json:"quiz_id"`
	Name      string                `json:"name"`
	Title     string                `json:"title"`
	Questions []QuestionFrequencies `json:"questions"`
}

type QuestionFrequencies struct {
	Ordinal int            `json:"ordinal"`
	Text    string         `json:"text"`
	Counts  map[string]int `json:"counts"`
}

// RawDump is the raw structured answer dump.
type RawDump struct {
	QuizID uint64       `json:"quiz_id"`
	Name   string       `json:"name"`
	Rows   []RawDumpRow `json:"rows"`
}

type RawDumpRow struct {
	InternalUserID uint64 `json:"internal_user_id"`
	Ordinal        int    `json:"ordinal"`
	Answer         string `json:"answer"`
}

// ExportService renders downstream reporting documents; it never touches
// session state.
type ExportService interface {
	FrequencyReport(ctx context.Context, quizID uint64) ([]byte, error)
	RawDump(ctx context.Context, quizID uint64) ([]byte, error)
}

type exportService struct {
	quizRepo   repository.QuizRepository
	answerRepo repository.AnswerRepository
}

func NewExportService(quizRepo repository.QuizRepository, answerRepo repository.AnswerRepository) ExportService {
	return &exportService{
		quizRepo:   quizRepo,
		answerRepo: answerRepo,
	}
}

func (s *exportService) FrequencyReport(ctx context.Context, quizID uint64) ([]byte, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, errs.Store(err)
	}
	if quiz == nil {
		return nil, errs.ErrQuizNotFound
	}

	rows, err := s.answerRepo.Frequencies(ctx, quizID)
	if err != nil {
		return nil, errs.Store(err)
	}

	byOrdinal := make(map[int]map[string]int)
	for _, row := range rows {
		if byOrdinal[row.Ordinal] == nil {
			byOrdinal[row.Ordinal] = make(map[string]int)
		}
		byOrdinal[row.Ordinal][row.Answer] = row.Count
	}

	report := FrequencyReport{
		QuizID: quiz.ID,
		Name:   quiz.Name,
		Title:  quiz.Title,
	}
	// placeholder rows keep every ordinal present even when a question was
	// skipped by every respondent
	for _, question := range quiz.Questions {
		counts := byOrdinal[question.Ordinal]
		if counts == nil {
			counts = make(map[string]int)
		}
		report.Questions = append(report.Questions, QuestionFrequencies{
			Ordinal: question.Ordinal,
			Text:    question.Text,
			Counts:  counts,
		})
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return payload, nil
}

func (s *exportService) RawDump(ctx context.Context, quizID uint64) ([]byte, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, errs.Store(err)
	}
	if quiz == nil {
		return nil, errs.ErrQuizNotFound
	}

	rows, err := s.answerRepo.Dump(ctx, quizID)
	if err != nil {
		return nil, errs.Store(err)
	}

	dump := RawDump{QuizID: quiz.ID, Name: quiz.Name}
	for _, row := range rows {
		dump.Rows = append(dump.Rows, RawDumpRow{
			InternalUserID: row.InternalUserID,
			Ordinal:        row.Ordinal,
			Answer:         row.Answer,
		})
	}

	payload, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render dump: %w", err)
	}
	return payload, nil
}
