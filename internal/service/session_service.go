package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Jenderlion/Quiz-bot/internal/errs"
	"github.com/Jenderlion/Quiz-bot/internal/models"
	"github.com/Jenderlion/Quiz-bot/internal/repository"
)

// StepKind classifies the outbound event a session transition produced.
type StepKind string

const (
	// StepQuestion carries the next question to pose.
	StepQuestion StepKind = "question"
	// StepCompleted carries the quiz gratitude text; the session is gone.
	StepCompleted StepKind = "completed"
	// StepRewritten confirms a one-shot answer correction; the session is gone.
	StepRewritten StepKind = "rewritten"
)

// Step is the outbound prompt produced by a session transition.
type Step struct {
	Kind     StepKind
	Question *models.Question
	Text     string
}

// SessionService owns per-user quiz progress: question sequencing,
// conditional-skip evaluation, answer persistence and completion detection.
type SessionService interface {
	StartQuiz(ctx context.Context, tgID int64, quizID uint64) (*Step, error)
	BeginRewrite(ctx context.Context, tgID int64, quizID uint64, ordinal int) (*Step, error)
	SubmitAnswer(ctx context.Context, tgID int64, text string) (*Step, error)
	AvailableQuizzes(ctx context.Context, tgID int64) ([]models.Quiz, error)
	CompletedQuizzes(ctx context.Context, tgID int64) ([]models.Quiz, error)
	CompletedQuizSummary(ctx context.Context, tgID int64, quizID uint64) ([]models.QuestionSummary, error)
}

type sessionService struct {
	userRepo   repository.UserRepository
	quizRepo   repository.QuizRepository
	answerRepo repository.AnswerRepository
	tx         repository.TxRunner
	locks      *UserLocks
}

func NewSessionService(
	userRepo repository.UserRepository,
	quizRepo repository.QuizRepository,
	answerRepo repository.AnswerRepository,
	tx repository.TxRunner,
	locks *UserLocks,
) SessionService {
	return &sessionService{
		userRepo:   userRepo,
		quizRepo:   quizRepo,
		answerRepo: answerRepo,
		tx:         tx,
		locks:      locks,
	}
}

// lockUser resolves the user, takes their lock and re-reads the row under it,
// so the session the caller sees cannot be advanced by a concurrent call.
func (s *sessionService) lockUser(ctx context.Context, tgID int64) (*models.User, func(), error) {
	user, err := s.userRepo.GetByTGID(ctx, tgID)
	if err != nil {
		return nil, nil, errs.Store(err)
	}
	if user == nil {
		return nil, nil, errs.ErrUserNotFound
	}

	unlock := s.locks.Lock(user.InternalID)

	user, err = s.userRepo.GetByTGID(ctx, tgID)
	if err != nil {
		unlock()
		return nil, nil, errs.Store(err)
	}
	if user == nil {
		unlock()
		return nil, nil, errs.ErrUserNotFound
	}
	return user, unlock, nil
}

func (s *sessionService) StartQuiz(ctx context.Context, tgID int64, quizID uint64) (*Step, error) {
	user, unlock, err := s.lockUser(ctx, tgID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if user.Session != nil {
		return nil, errs.ErrSessionActive
	}

	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, errs.Store(err)
	}
	if quiz == nil || !quiz.Visible {
		return nil, errs.ErrQuizNotFound
	}

	completed, err := s.completedSet(ctx, user.InternalID)
	if err != nil {
		return nil, err
	}
	if completed[quizID] {
		return nil, errs.ErrQuizAlreadyCompleted
	}

	var step *Step
	err = s.tx.InTx(ctx, func(tx *sql.Tx) error {
		var walkErr error
		step, walkErr = s.walkTx(ctx, tx, user, quiz, 1, map[int]string{})
		return walkErr
	})
	if err != nil {
		return nil, errs.Store(err)
	}
	return step, nil
}

func (s *sessionService) BeginRewrite(ctx context.Context, tgID int64, quizID uint64, ordinal int) (*Step, error) {
	user, unlock, err := s.lockUser(ctx, tgID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if user.Session != nil {
		return nil, errs.ErrSessionActive
	}

	completed, err := s.completedSet(ctx, user.InternalID)
	if err != nil {
		return nil, err
	}
	if !completed[quizID] {
		return nil, errs.ErrQuizNotCompleted
	}

	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, errs.Store(err)
	}
	if quiz == nil {
		return nil, errs.ErrQuizNotFound
	}

	question := quiz.Question(ordinal)
	if question == nil {
		return nil, errs.ErrQuestionNotFound
	}

	session := &models.Session{QuizID: quizID, Ordinal: ordinal, Rewrite: true}
	if err := s.userRepo.UpdateSession(ctx, user.InternalID, session); err != nil {
		return nil, errs.Store(err)
	}
	return &Step{Kind: StepQuestion, Question: question}, nil
}

func (s *sessionService) SubmitAnswer(ctx context.Context, tgID int64, text string) (*Step, error) {
	user, unlock, err := s.lockUser(ctx, tgID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session := user.Session
	if session == nil {
		return nil, errs.ErrNoActiveSession
	}

	quiz, err := s.quizRepo.GetByID(ctx, session.QuizID)
	if err != nil {
		return nil, errs.Store(err)
	}
	if quiz == nil {
		return nil, errs.ErrQuizNotFound
	}

	if session.Rewrite {
		return s.commitRewrite(ctx, user, quiz, session, text)
	}

	if quiz.Question(session.Ordinal) == nil {
		return nil, errs.ErrQuestionNotFound
	}

	// answer append, skip placeholders and the session move commit together;
	// a failure anywhere rolls the whole transition back
	var step *Step
	err = s.tx.InTx(ctx, func(tx *sql.Tx) error {
		answer := &models.Answer{
			InternalUserID: user.InternalID,
			QuizID:         quiz.ID,
			Ordinal:        session.Ordinal,
			Text:           text,
		}
		if err := s.answerRepo.CreateTx(ctx, tx, answer); err != nil {
			return err
		}
		walk := map[int]string{session.Ordinal: text}
		var walkErr error
		step, walkErr = s.walkTx(ctx, tx, user, quiz, session.Ordinal+1, walk)
		return walkErr
	})
	if err != nil {
		return nil, errs.Store(err)
	}
	return step, nil
}

func (s *sessionService) commitRewrite(ctx context.Context, user *models.User, quiz *models.Quiz, session *models.Session, text string) (*Step, error) {
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.answerRepo.RewriteTx(ctx, tx, user.InternalID, quiz.ID, session.Ordinal, text); err != nil {
			return err
		}
		return s.userRepo.UpdateSessionTx(ctx, tx, user.InternalID, nil)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrQuestionNotFound
	}
	if err != nil {
		return nil, errs.Store(err)
	}
	return &Step{Kind: StepRewritten}, nil
}

// walkTx advances from the given ordinal to the first question whose relation
// is satisfied or absent, writing a skip placeholder for every question it
// passes over. The loop is bounded by the quiz length; the compiler's
// backwards-only relation rule means no walk can revisit an ordinal. Running
// off the end completes the quiz.
func (s *sessionService) walkTx(ctx context.Context, tx *sql.Tx, user *models.User, quiz *models.Quiz, from int, walk map[int]string) (*Step, error) {
	maxOrdinal := quiz.MaxOrdinal()
	for ordinal := from; ordinal <= maxOrdinal; ordinal++ {
		question := quiz.Question(ordinal)
		if question == nil {
			return nil, fmt.Errorf("quiz %d has no question %d", quiz.ID, ordinal)
		}

		met, err := s.relationMet(ctx, user, quiz, question, walk)
		if err != nil {
			return nil, err
		}
		if met {
			session := &models.Session{QuizID: quiz.ID, Ordinal: ordinal}
			if err := s.userRepo.UpdateSessionTx(ctx, tx, user.InternalID, session); err != nil {
				return nil, err
			}
			return &Step{Kind: StepQuestion, Question: question}, nil
		}

		// unmet relation: store the placeholder so ordinals stay dense
		placeholder := &models.Answer{
			InternalUserID: user.InternalID,
			QuizID:         quiz.ID,
			Ordinal:        ordinal,
			Text:           models.SkippedAnswer,
		}
		if err := s.answerRepo.CreateTx(ctx, tx, placeholder); err != nil {
			return nil, err
		}
		walk[ordinal] = models.SkippedAnswer
	}

	if err := s.userRepo.UpdateSessionTx(ctx, tx, user.InternalID, nil); err != nil {
		return nil, err
	}
	return &Step{Kind: StepCompleted, Text: quiz.Gratitude}, nil
}

// relationMet compares the recorded prerequisite answer against the required
// literal. Comparison is exact: case- and whitespace-sensitive. A skipped
// prerequisite recorded the placeholder, which never equals a real option, so
// relation chains cascade their skips.
func (s *sessionService) relationMet(ctx context.Context, user *models.User, quiz *models.Quiz, question *models.Question, walk map[int]string) (bool, error) {
	if question.Relation == nil {
		return true, nil
	}

	recorded, ok := walk[question.Relation.PrereqOrdinal]
	if !ok {
		answer, err := s.answerRepo.Get(ctx, user.InternalID, quiz.ID, question.Relation.PrereqOrdinal)
		if err != nil {
			return false, err
		}
		if answer == nil {
			return false, nil
		}
		recorded = answer.Text
	}
	return recorded == question.Relation.RequiredAnswer, nil
}

func (s *sessionService) AvailableQuizzes(ctx context.Context, tgID int64) ([]models.Quiz, error) {
	user, err := s.getUser(ctx, tgID)
	if err != nil {
		return nil, err
	}

	visible, err := s.quizRepo.ListVisible(ctx)
	if err != nil {
		return nil, errs.Store(err)
	}
	completed, err := s.completedSet(ctx, user.InternalID)
	if err != nil {
		return nil, err
	}

	var available []models.Quiz
	for _, quiz := range visible {
		if !completed[quiz.ID] {
			available = append(available, quiz)
		}
	}
	return available, nil
}

// CompletedQuizzes lists every quiz the user finished, hidden ones included:
// hiding a quiz must not strand the rewrite menu.
func (s *sessionService) CompletedQuizzes(ctx context.Context, tgID int64) ([]models.Quiz, error) {
	user, err := s.getUser(ctx, tgID)
	if err != nil {
		return nil, err
	}

	all, err := s.quizRepo.List(ctx)
	if err != nil {
		return nil, errs.Store(err)
	}
	completed, err := s.completedSet(ctx, user.InternalID)
	if err != nil {
		return nil, err
	}

	var quizzes []models.Quiz
	for _, quiz := range all {
		if completed[quiz.ID] {
			quizzes = append(quizzes, quiz)
		}
	}
	return quizzes, nil
}

func (s *sessionService) CompletedQuizSummary(ctx context.Context, tgID int64, quizID uint64) ([]models.QuestionSummary, error) {
	user, err := s.getUser(ctx, tgID)
	if err != nil {
		return nil, err
	}

	completed, err := s.completedSet(ctx, user.InternalID)
	if err != nil {
		return nil, err
	}
	if !completed[quizID] {
		return nil, errs.ErrQuizNotCompleted
	}

	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, errs.Store(err)
	}
	if quiz == nil {
		return nil, errs.ErrQuizNotFound
	}

	summaries := make([]models.QuestionSummary, 0, len(quiz.Questions))
	for _, question := range quiz.Questions {
		summaries = append(summaries, models.QuestionSummary{
			Ordinal:  question.Ordinal,
			Text:     question.Text,
			Relation: question.Relation,
		})
	}
	return summaries, nil
}

func (s *sessionService) getUser(ctx context.Context, tgID int64) (*models.User, error) {
	user, err := s.userRepo.GetByTGID(ctx, tgID)
	if err != nil {
		return nil, errs.Store(err)
	}
	if user == nil {
		return nil, errs.ErrUserNotFound
	}
	return user, nil
}

func (s *sessionService) completedSet(ctx context.Context, internalID uint64) (map[uint64]bool, error) {
	ids, err := s.answerRepo.CompletedQuizIDs(ctx, internalID)
	if err != nil {
		return nil, errs.Store(err)
	}
	set := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
