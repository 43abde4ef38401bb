package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jenderlion/Quiz-bot/internal/models"
)

func newUserRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"internal_id", "tg_user_id", "role", "is_banned",
		"mailing", "quiz_id", "question_num", "rewrite", "created_at",
	})
}

func TestUserGetByTGID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	created := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT internal_id, tg_user_id, role, is_banned, mailing, quiz_id, question_num, rewrite, created_at FROM users WHERE tg_user_id = ?")).
		WithArgs(int64(100)).
		WillReturnRows(newUserRows(t).AddRow(1, 100, "editor", false, true, 7, 3, false, created))

	user, err := repo.GetByTGID(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, uint64(1), user.InternalID)
	assert.Equal(t, models.RoleEditor, user.Role)
	require.NotNil(t, user.Session)
	assert.Equal(t, uint64(7), user.Session.QuizID)
	assert.Equal(t, 3, user.Session.Ordinal)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByTGIDNoSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	// quiz_id 0 means no active session
	mock.ExpectQuery("SELECT (.+) FROM users WHERE tg_user_id").
		WithArgs(int64(100)).
		WillReturnRows(newUserRows(t).AddRow(1, 100, "user", false, false, 0, 0, false, time.Now()))

	user, err := repo.GetByTGID(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Nil(t, user.Session)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByTGIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE tg_user_id").
		WithArgs(int64(100)).
		WillReturnRows(newUserRows(t))

	user, err := repo.GetByTGID(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, user)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (tg_user_id, role) VALUES (?, ?)")).
		WithArgs(int64(100), models.RoleUser).
		WillReturnResult(sqlmock.NewResult(5, 1))

	user, err := repo.Create(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), user.InternalID)
	assert.Equal(t, models.RoleUser, user.Role)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	query := regexp.QuoteMeta("UPDATE users SET quiz_id = ?, question_num = ?, rewrite = ? WHERE internal_id = ?")

	mock.ExpectExec(query).
		WithArgs(uint64(7), 3, true, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err = repo.UpdateSession(context.Background(), 1, &models.Session{QuizID: 7, Ordinal: 3, Rewrite: true})
	require.NoError(t, err)

	// a nil session zeroes the columns
	mock.ExpectExec(query).
		WithArgs(uint64(0), 0, false, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err = repo.UpdateSession(context.Background(), 1, nil)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateSessionTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET quiz_id = ?")).
		WithArgs(uint64(7), 1, false, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.UpdateSessionTx(context.Background(), tx, 1, &models.Session{QuizID: 7, Ordinal: 1})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserListMailing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE mailing = 1 AND is_banned = 0").
		WillReturnRows(newUserRows(t).
			AddRow(1, 100, "user", false, true, 0, 0, false, time.Now()).
			AddRow(2, 200, "editor", false, true, 0, 0, false, time.Now()))

	users, err := repo.ListMailing(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(100), users[0].TGUserID)
	assert.Equal(t, int64(200), users[1].TGUserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE tg_user_id").
		WithArgs(int64(100)).
		WillReturnError(errors.New("connection lost"))

	_, err = repo.GetByTGID(context.Background(), 100)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
