package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Jenderlion/Quiz-bot/internal/models"
)

type BanRepository interface {
	Create(ctx context.Context, ban *models.Ban) (uint64, error)
	ActiveByUser(ctx context.Context, internalID uint64) (*models.Ban, error)
	Deactivate(ctx context.Context, banID uint64) error
	ListActiveExpired(ctx context.Context, now time.Time) ([]models.Ban, error)
}

type banRepository struct {
	db *sql.DB
}

func NewBanRepository(db *sql.DB) BanRepository {
	return &banRepository{db: db}
}

const banColumns = "id, internal_user_id, tg_user_id, initiator_id, reason, ban_time, unban_time, active"

func (r *banRepository) Create(ctx context.Context, ban *models.Ban) (uint64, error) {
	query := `
		INSERT INTO bans (internal_user_id, tg_user_id, initiator_id, reason, ban_time, unban_time, active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`
	result, err := r.db.ExecContext(ctx, query,
		ban.InternalUserID, ban.TGUserID, ban.InitiatorID, ban.Reason, ban.BanTime, ban.UnbanTime,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ban: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get new ban id: %w", err)
	}
	ban.ID = uint64(id)
	ban.Active = true
	return ban.ID, nil
}

func (r *banRepository) ActiveByUser(ctx context.Context, internalID uint64) (*models.Ban, error) {
	query := `SELECT ` + banColumns + ` FROM bans WHERE internal_user_id = ? AND active = 1 ORDER BY id DESC LIMIT 1`
	ban := &models.Ban{}
	err := r.db.QueryRowContext(ctx, query, internalID).Scan(
		&ban.ID, &ban.InternalUserID, &ban.TGUserID, &ban.InitiatorID,
		&ban.Reason, &ban.BanTime, &ban.UnbanTime, &ban.Active,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active ban: %w", err)
	}
	return ban, nil
}

// Deactivate is idempotent: deactivating an already inactive record changes
// nothing, which is what lets the sweep and a human unban race safely.
func (r *banRepository) Deactivate(ctx context.Context, banID uint64) error {
	query := `UPDATE bans SET active = 0 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, banID); err != nil {
		return fmt.Errorf("failed to deactivate ban: %w", err)
	}
	return nil
}

func (r *banRepository) ListActiveExpired(ctx context.Context, now time.Time) ([]models.Ban, error) {
	query := `SELECT ` + banColumns + ` FROM bans WHERE active = 1 AND unban_time <= ?`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired bans: %w", err)
	}
	defer rows.Close()

	var bans []models.Ban
	for rows.Next() {
		ban := models.Ban{}
		if err := rows.Scan(
			&ban.ID, &ban.InternalUserID, &ban.TGUserID, &ban.InitiatorID,
			&ban.Reason, &ban.BanTime, &ban.UnbanTime, &ban.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		bans = append(bans, ban)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bans: %w", err)
	}
	return bans, nil
}
