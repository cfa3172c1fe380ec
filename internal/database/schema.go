package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by EnsureSchema.  Every statement is
// idempotent.  The tickets indexes back the door-side access paths:
// (event_id, checked_in) for stats, (event_id, name) for ordered search and
// (event_id, email) for email search.  The CHECK constraint pins
// checked_in = 1 <=> check_in_time IS NOT NULL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		form_id     VARCHAR(64)  NOT NULL,
		title       VARCHAR(255) NOT NULL,
		start_time  DATETIME     NOT NULL,
		end_time    DATETIME     NOT NULL,
		created_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_events_form_id (form_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		name          VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL DEFAULT 'GUEST',
		is_active     TINYINT(1)   NOT NULL DEFAULT 1,
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		invoice_no      VARCHAR(64)   NOT NULL,
		event_id        BIGINT UNSIGNED NOT NULL,
		user_id         BIGINT UNSIGNED NOT NULL,
		name            VARCHAR(255)  NOT NULL DEFAULT '',
		email           VARCHAR(255)  NOT NULL DEFAULT '',
		phone           VARCHAR(64)   NOT NULL DEFAULT '',
		church          VARCHAR(255)  NOT NULL DEFAULT '',
		quantity        INT UNSIGNED  NOT NULL DEFAULT 1,
		product_details TEXT          NOT NULL,
		total_amount    DECIMAL(12,2) NOT NULL DEFAULT 0,
		event_date      VARCHAR(255)  NOT NULL DEFAULT '',
		choose_your     VARCHAR(64)   NOT NULL DEFAULT '',
		checked_in      TINYINT(1)    NOT NULL DEFAULT 0,
		check_in_time   DATETIME(3)   NULL,
		created_at      DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_tickets_invoice_no (invoice_no),
		KEY idx_tickets_event_checked_in (event_id, checked_in),
		KEY idx_tickets_event_name (event_id, name),
		KEY idx_tickets_event_email (event_id, email),
		CONSTRAINT fk_tickets_event FOREIGN KEY (event_id) REFERENCES events (id),
		CONSTRAINT fk_tickets_user FOREIGN KEY (user_id) REFERENCES users (id),
		CONSTRAINT chk_tickets_check_in CHECK (
			(checked_in = 0 AND check_in_time IS NULL) OR
			(checked_in = 1 AND check_in_time IS NOT NULL))
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the tables and indexes when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
