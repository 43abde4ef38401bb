package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Jenderlion/Quiz-bot/internal/models"
)

type UserRepository interface {
	GetByTGID(ctx context.Context, tgID int64) (*models.User, error)
	GetByInternalID(ctx context.Context, internalID uint64) (*models.User, error)
	Create(ctx context.Context, tgID int64) (*models.User, error)
	UpdateRole(ctx context.Context, internalID uint64, role models.Role) error
	UpdateBanned(ctx context.Context, internalID uint64, banned bool) error
	UpdateMailing(ctx context.Context, internalID uint64, mailing bool) error
	UpdateSession(ctx context.Context, internalID uint64, session *models.Session) error
	UpdateSessionTx(ctx context.Context, tx *sql.Tx, internalID uint64, session *models.Session) error
	ListMailing(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = "internal_id, tg_user_id, role, is_banned, mailing, quiz_id, question_num, rewrite, created_at"

func (r *userRepository) GetByTGID(ctx context.Context, tgID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tg_user_id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, tgID))
}

func (r *userRepository) GetByInternalID(ctx context.Context, internalID uint64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE internal_id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, internalID))
}

func (r *userRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var quizID uint64
	var questionNum int
	var rewrite bool
	err := row.Scan(
		&user.InternalID, &user.TGUserID, &user.Role, &user.Banned,
		&user.Mailing, &quizID, &questionNum, &rewrite, &user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if quizID != 0 {
		user.Session = &models.Session{QuizID: quizID, Ordinal: questionNum, Rewrite: rewrite}
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, tgID int64) (*models.User, error) {
	query := `INSERT INTO users (tg_user_id, role) VALUES (?, ?)`
	result, err := r.db.ExecContext(ctx, query, tgID, models.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get new user id: %w", err)
	}
	return &models.User{
		InternalID: uint64(id),
		TGUserID:   tgID,
		Role:       models.RoleUser,
	}, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, internalID uint64, role models.Role) error {
	query := `UPDATE users SET role = ? WHERE internal_id = ?`
	if _, err := r.db.ExecContext(ctx, query, role, internalID); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateBanned(ctx context.Context, internalID uint64, banned bool) error {
	query := `UPDATE users SET is_banned = ? WHERE internal_id = ?`
	if _, err := r.db.ExecContext(ctx, query, banned, internalID); err != nil {
		return fmt.Errorf("failed to update ban flag: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateMailing(ctx context.Context, internalID uint64, mailing bool) error {
	query := `UPDATE users SET mailing = ? WHERE internal_id = ?`
	if _, err := r.db.ExecContext(ctx, query, mailing, internalID); err != nil {
		return fmt.Errorf("failed to update mailing flag: %w", err)
	}
	return nil
}

const updateSessionQuery = `UPDATE users SET quiz_id = ?, question_num = ?, rewrite = ? WHERE internal_id = ?`

func (r *userRepository) UpdateSession(ctx context.Context, internalID uint64, session *models.Session) error {
	args := sessionArgs(internalID, session)
	if _, err := r.db.ExecContext(ctx, updateSessionQuery, args...); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateSessionTx(ctx context.Context, tx *sql.Tx, internalID uint64, session *models.Session) error {
	args := sessionArgs(internalID, session)
	if _, err := tx.ExecContext(ctx, updateSessionQuery, args...); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func sessionArgs(internalID uint64, session *models.Session) []interface{} {
	if session == nil {
		return []interface{}{uint64(0), 0, false, internalID}
	}
	return []interface{}{session.QuizID, session.Ordinal, session.Rewrite, internalID}
}

func (r *userRepository) ListMailing(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE mailing = 1 AND is_banned = 0`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list mailing users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user := models.User{}
		var quizID uint64
		var questionNum int
		var rewrite bool
		if err := rows.Scan(
			&user.InternalID, &user.TGUserID, &user.Role, &user.Banned,
			&user.Mailing, &quizID, &questionNum, &rewrite, &user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if quizID != 0 {
			user.Session = &models.Session{QuizID: quizID, Ordinal: questionNum, Rewrite: rewrite}
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
