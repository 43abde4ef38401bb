package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Jenderlion/Quiz-bot/internal/models"
)

type MessageLogRepository interface {
	Create(ctx context.Context, entry *models.MessageLog) error
}

type messageLogRepository struct {
	db *sql.DB
}

func NewMessageLogRepository(db *sql.DB) MessageLogRepository {
	return &messageLogRepository{db: db}
}

func (r *messageLogRepository) Create(ctx context.Context, entry *models.MessageLog) error {
	query := `INSERT INTO message_log (tg_user_id, msg_text, msg_timestamp) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, entry.TGUserID, entry.Text, entry.Timestamp); err != nil {
		return fmt.Errorf("failed to insert message log: %w", err)
	}
	return nil
}
