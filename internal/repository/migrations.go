package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema when it does not exist yet. Statements are
// idempotent; the bot owns its tables the same way the original deployment
// did.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			internal_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			tg_user_id BIGINT NOT NULL,
			role VARCHAR(30) NOT NULL DEFAULT 'user',
			is_banned TINYINT(1) NOT NULL DEFAULT 0,
			mailing TINYINT(1) NOT NULL DEFAULT 0,
			quiz_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
			question_num INT NOT NULL DEFAULT 0,
			rewrite TINYINT(1) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (internal_id),
			UNIQUE KEY uq_users_tg (tg_user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS quizzes (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL,
			title TEXT NOT NULL,
			gratitude TEXT NOT NULL,
			visible TINYINT(1) NOT NULL DEFAULT 0,
			PRIMARY KEY (id),
			UNIQUE KEY uq_quizzes_name (name)
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			quiz_id BIGINT UNSIGNED NOT NULL,
			quest_num INT NOT NULL,
			quest_text TEXT NOT NULL,
			quest_options TEXT NOT NULL,
			prereq_num INT NULL,
			required_answer TEXT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_questions_quiz_ordinal (quiz_id, quest_num)
		)`,
		`CREATE TABLE IF NOT EXISTS answers (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			internal_user_id BIGINT UNSIGNED NOT NULL,
			quiz_id BIGINT UNSIGNED NOT NULL,
			quest_num INT NOT NULL,
			answer TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_answers_user_quiz_ordinal (internal_user_id, quiz_id, quest_num)
		)`,
		`CREATE TABLE IF NOT EXISTS bans (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			internal_user_id BIGINT UNSIGNED NOT NULL,
			tg_user_id BIGINT NOT NULL,
			initiator_id BIGINT UNSIGNED NOT NULL,
			reason VARCHAR(128) NOT NULL,
			ban_time TIMESTAMP NOT NULL,
			unban_time TIMESTAMP NOT NULL,
			active TINYINT(1) NOT NULL DEFAULT 1,
			PRIMARY KEY (id),
			KEY idx_bans_active (active, unban_time)
		)`,
		`CREATE TABLE IF NOT EXISTS message_log (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			tg_user_id BIGINT NOT NULL,
			msg_text TEXT NOT NULL,
			msg_timestamp TIMESTAMP NOT NULL,
			PRIMARY KEY (id),
			KEY idx_message_log_user (tg_user_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
