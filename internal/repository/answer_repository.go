package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Jenderlion/Quiz-bot/internal/models"
)

type AnswerRepository interface {
	CreateTx(ctx context.Context, tx *sql.Tx, answer *models.Answer) error
	RewriteTx(ctx context.Context, tx *sql.Tx, userID, quizID uint64, ordinal int, text string) error
	Get(ctx context.Context, userID, quizID uint64, ordinal int) (*models.Answer, error)
	ListByUserQuiz(ctx context.Context, userID, quizID uint64) ([]models.Answer, error)
	CompletedQuizIDs(ctx context.Context, userID uint64) ([]uint64, error)
	Frequencies(ctx context.Context, quizID uint64) ([]models.FrequencyRow, error)
	Dump(ctx context.Context, quizID uint64) ([]models.DumpRow, error)
}

type answerRepository struct {
	db *sql.DB
}

func NewAnswerRepository(db *sql.DB) AnswerRepository {
	return &answerRepository{db: db}
}

// CreateTx appends one answer row inside the caller's transaction. The unique
// key on (internal_user_id, quiz_id, quest_num) keeps answers at one live row
// per tuple even if a race slips past the per-user lock.
func (r *answerRepository) CreateTx(ctx context.Context, tx *sql.Tx, answer *models.Answer) error {
	query := `INSERT INTO answers (internal_user_id, quiz_id, quest_num, answer) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query, answer.InternalUserID, answer.QuizID, answer.Ordinal, answer.Text)
	if err != nil {
		return fmt.Errorf("failed to insert answer: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get new answer id: %w", err)
	}
	answer.ID = uint64(id)
	return nil
}

// RewriteTx replaces the answer text in place.
func (r *answerRepository) RewriteTx(ctx context.Context, tx *sql.Tx, userID, quizID uint64, ordinal int, text string) error {
	query := `UPDATE answers SET answer = ? WHERE internal_user_id = ? AND quiz_id = ? AND quest_num = ?`
	result, err := tx.ExecContext(ctx, query, text, userID, quizID, ordinal)
	if err != nil {
		return fmt.Errorf("failed to rewrite answer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rewrite: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *answerRepository) Get(ctx context.Context, userID, quizID uint64, ordinal int) (*models.Answer, error) {
	query := `
		SELECT id, internal_user_id, quiz_id, quest_num, answer, created_at
		FROM answers
		WHERE internal_user_id = ? AND quiz_id = ? AND quest_num = ?
	`
	answer := &models.Answer{}
	err := r.db.QueryRowContext(ctx, query, userID, quizID, ordinal).Scan(
		&answer.ID, &answer.InternalUserID, &answer.QuizID,
		&answer.Ordinal, &answer.Text, &answer.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return answer, nil
}

func (r *answerRepository) ListByUserQuiz(ctx context.Context, userID, quizID uint64) ([]models.Answer, error) {
	query := `
		SELECT id, internal_user_id, quiz_id, quest_num, answer, created_at
		FROM answers
		WHERE internal_user_id = ? AND quiz_id = ?
		ORDER BY quest_num
	`
	rows, err := r.db.QueryContext(ctx, query, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		answer := models.Answer{}
		if err := rows.Scan(
			&answer.ID, &answer.InternalUserID, &answer.QuizID,
			&answer.Ordinal, &answer.Text, &answer.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answers: %w", err)
	}
	return answers, nil
}

// CompletedQuizIDs lists quizzes with at least one recorded answer row for
// the user, which is the discovery-time definition of "completed".
func (r *answerRepository) CompletedQuizIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	query := `SELECT DISTINCT quiz_id FROM answers WHERE internal_user_id = ? ORDER BY quiz_id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed quizzes: %w", err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan quiz id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quiz ids: %w", err)
	}
	return ids, nil
}

func (r *answerRepository) Frequencies(ctx context.Context, quizID uint64) ([]models.FrequencyRow, error) {
	query := `
		SELECT quest_num, answer, COUNT(*)
		FROM answers
		WHERE quiz_id = ?
		GROUP BY quest_num, answer
		ORDER BY quest_num, COUNT(*) DESC
	`
	rows, err := r.db.QueryContext(ctx, query, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate answers: %w", err)
	}
	defer rows.Close()

	var freq []models.FrequencyRow
	for rows.Next() {
		row := models.FrequencyRow{}
		if err := rows.Scan(&row.Ordinal, &row.Answer, &row.Count); err != nil {
			return nil, fmt.Errorf("failed to scan frequency row: %w", err)
		}
		freq = append(freq, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frequency rows: %w", err)
	}
	return freq, nil
}

func (r *answerRepository) Dump(ctx context.Context, quizID uint64) ([]models.DumpRow, error) {
	query := `
		SELECT internal_user_id, quest_num, answer
		FROM answers
		WHERE quiz_id = ?
		ORDER BY internal_user_id, quest_num
	`
	rows, err := r.db.QueryContext(ctx, query, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to dump answers: %w", err)
	}
	defer rows.Close()

	var dump []models.DumpRow
	for rows.Next() {
		row := models.DumpRow{}
		if err := rows.Scan(&row.InternalUserID, &row.Ordinal, &row.Answer); err != nil {
			return nil, fmt.Errorf("failed to scan dump row: %w", err)
		}
		dump = append(dump, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dump rows: %w", err)
	}
	return dump, nil
}
