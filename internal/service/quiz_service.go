package service

import (
	"context"
	"strings"

	"github.com/Jenderlion/Quiz-bot/internal/archive"
	"github.com/Jenderlion/Quiz-bot/internal/compiler"
	"github.com/Jenderlion/Quiz-bot/internal/errs"
	"github.com/Jenderlion/Quiz-bot/internal/models"
	"github.com/Jenderlion/Quiz-bot/internal/repository"
	"github.com/Jenderlion/Quiz-bot/pkg/logger"
)

// QuizService owns the quiz lifecycle: ingestion of uploaded definitions and
// visibility management. Published quizzes are immutable.
type QuizService interface {
	Ingest(ctx context.Context, fileName, raw string) (*models.Quiz, error)
	SetVisibility(ctx context.Context, quizID uint64, value string) error
	ListAll(ctx context.Context) ([]models.Quiz, error)
}

type quizService struct {
	quizRepo repository.QuizRepository
	archive  archive.Archive
	log      *logger.Logger
}

func NewQuizService(quizRepo repository.QuizRepository, archive archive.Archive, log *logger.Logger) QuizService {
	return &quizService{
		quizRepo: quizRepo,
		archive:  archive,
		log:      log,
	}
}

// Ingest compiles and publishes an uploaded quiz definition. New quizzes
// start hidden; an admin flips visibility once the content is checked. The
// raw text is archived best-effort after the quiz is persisted.
func (s *quizService) Ingest(ctx context.Context, fileName, raw string) (*models.Quiz, error) {
	quiz, err := compiler.Compile(raw)
	if err != nil {
		return nil, err
	}

	existing, err := s.quizRepo.GetByName(ctx, quiz.Name)
	if err != nil {
		return nil, errs.Store(err)
	}
	if existing != nil {
		return nil, errs.ErrQuizNameTaken
	}

	id, err := s.quizRepo.Create(ctx, quiz)
	if err != nil {
		return nil, errs.Store(err)
	}
	quiz.ID = id

	if err := s.archive.Store(fileName, strings.NewReader(raw)); err != nil {
		s.log.WithField("file", fileName).WithField("error", err.Error()).Warn("quiz archive failed")
	}

	s.log.WithField("quiz", quiz.Name).WithField("questions", len(quiz.Questions)).Info("quiz published")
	return quiz, nil
}

// SetVisibility parses the flag strictly; anything but the literal
// "true"/"false" is rejected, never evaluated.
func (s *quizService) SetVisibility(ctx context.Context, quizID uint64, value string) error {
	visible, err := ParseBoolStrict(value)
	if err != nil {
		return err
	}

	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return errs.Store(err)
	}
	if quiz == nil {
		return errs.ErrQuizNotFound
	}

	if err := s.quizRepo.SetVisibility(ctx, quizID, visible); err != nil {
		return errs.Store(err)
	}
	return nil
}

func (s *quizService) ListAll(ctx context.Context) ([]models.Quiz, error) {
	quizzes, err := s.quizRepo.List(ctx)
	if err != nil {
		return nil, errs.Store(err)
	}
	return quizzes, nil
}
