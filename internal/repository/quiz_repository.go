package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Jenderlion/Quiz-bot/internal/models"
)

type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) (uint64, error)
	GetByID(ctx context.Context, quizID uint64) (*models.Quiz, error)
	GetByName(ctx context.Context, name string) (*models.Quiz, error)
	ListVisible(ctx context.Context) ([]models.Quiz, error)
	List(ctx context.Context) ([]models.Quiz, error)
	SetVisibility(ctx context.Context, quizID uint64, visible bool) error
}

type quizRepository struct {
	db *sql.DB
}

func NewQuizRepository(db *sql.DB) QuizRepository {
	return &quizRepository{db: db}
}

// Create inserts the quiz and its questions in one transaction. Quizzes are
// immutable once published, so this is the only write besides visibility.
func (r *quizRepository) Create(ctx context.Context, quiz *models.Quiz) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO quizzes (name, title, gratitude, visible) VALUES (?, ?, ?, ?)`,
		quiz.Name, quiz.Title, quiz.Gratitude, quiz.Visible,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert quiz: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get new quiz id: %w", err)
	}
	quizID := uint64(id)

	for i := range quiz.Questions {
		question := &quiz.Questions[i]
		var prereq sql.NullInt64
		var required sql.NullString
		if question.Relation != nil {
			prereq = sql.NullInt64{Int64: int64(question.Relation.PrereqOrdinal), Valid: true}
			required = sql.NullString{String: question.Relation.RequiredAnswer, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (quiz_id, quest_num, quest_text, quest_options, prereq_num, required_answer)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			quizID, question.Ordinal, question.Text, packOptions(question.Options), prereq, required,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert question %d: %w", question.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit quiz: %w", err)
	}
	return quizID, nil
}

func (r *quizRepository) GetByID(ctx context.Context, quizID uint64) (*models.Quiz, error) {
	query := `SELECT id, name, title, gratitude, visible FROM quizzes WHERE id = ?`
	return r.getOne(ctx, query, quizID)
}

func (r *quizRepository) GetByName(ctx context.Context, name string) (*models.Quiz, error) {
	query := `SELECT id, name, title, gratitude, visible FROM quizzes WHERE name = ?`
	return r.getOne(ctx, query, name)
}

func (r *quizRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Quiz, error) {
	quiz := &models.Quiz{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&quiz.ID, &quiz.Name, &quiz.Title, &quiz.Gratitude, &quiz.Visible,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := r.loadQuestions(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (r *quizRepository) loadQuestions(ctx context.Context, quiz *models.Quiz) error {
	query := `
		SELECT quiz_id, quest_num, quest_text, quest_options, prereq_num, required_answer
		FROM questions
		WHERE quiz_id = ?
		ORDER BY quest_num
	`
	rows, err := r.db.QueryContext(ctx, query, quiz.ID)
	if err != nil {
		return fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		question := models.Question{}
		var rawOptions string
		var prereq sql.NullInt64
		var required sql.NullString
		if err := rows.Scan(
			&question.QuizID, &question.Ordinal, &question.Text,
			&rawOptions, &prereq, &required,
		); err != nil {
			return fmt.Errorf("failed to scan question: %w", err)
		}
		question.Options = unpackOptions(rawOptions)
		if prereq.Valid {
			question.Relation = &models.Relation{
				PrereqOrdinal:  int(prereq.Int64),
				RequiredAnswer: required.String,
			}
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating questions: %w", err)
	}
	return nil
}

func (r *quizRepository) ListVisible(ctx context.Context) ([]models.Quiz, error) {
	return r.list(ctx, `SELECT id, name, title, gratitude, visible FROM quizzes WHERE visible = 1 ORDER BY id`)
}

func (r *quizRepository) List(ctx context.Context) ([]models.Quiz, error) {
	return r.list(ctx, `SELECT id, name, title, gratitude, visible FROM quizzes ORDER BY id`)
}

// list returns quiz headers without questions; discovery menus never need the
// question bodies.
func (r *quizRepository) list(ctx context.Context, query string) ([]models.Quiz, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []models.Quiz
	for rows.Next() {
		quiz := models.Quiz{}
		if err := rows.Scan(&quiz.ID, &quiz.Name, &quiz.Title, &quiz.Gratitude, &quiz.Visible); err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quizzes: %w", err)
	}
	return quizzes, nil
}

func (r *quizRepository) SetVisibility(ctx context.Context, quizID uint64, visible bool) error {
	query := `UPDATE quizzes SET visible = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, visible, quizID)
	if err != nil {
		return fmt.Errorf("failed to set visibility: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check visibility update: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// packOptions stores the option list in the same separated form the quiz
// files use; free-text questions store the MANUAL_INPUT sentinel.
func packOptions(options []string) string {
	if len(options) == 0 {
		return models.ManualInput
	}
	return strings.Join(options, models.OptionSeparator)
}

func unpackOptions(raw string) []string {
	if raw == models.ManualInput {
		return nil
	}
	return strings.Split(raw, models.OptionSeparator)
}
