package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on every start.  Statements are idempotent.
// slots carries one row per (slot_date, start_time); released rows are
// updated in place, so the unique key covers booked and free rows alike.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(120) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('user','admin') NOT NULL DEFAULT 'user',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS packages (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(160) NOT NULL,
		category VARCHAR(80) NOT NULL,
		description TEXT NOT NULL,
		price_cents INT UNSIGNED NOT NULL,
		features JSON NOT NULL,
		duration INT UNSIGNED NOT NULL,
		duration_unit ENUM('hours','days','weeks','months') NOT NULL DEFAULT 'hours',
		images JSON NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_packages_category (category)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS slots (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		slot_date CHAR(10) NOT NULL,
		start_time VARCHAR(8) NOT NULL,
		end_time VARCHAR(8) NOT NULL,
		is_booked TINYINT(1) NOT NULL DEFAULT 0,
		booked_by BIGINT UNSIGNED NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_slots_key (slot_date, start_time),
		CONSTRAINT fk_slots_user FOREIGN KEY (booked_by) REFERENCES users(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		package_id BIGINT UNSIGNED NOT NULL,
		slot_id BIGINT UNSIGNED NOT NULL,
		package_title VARCHAR(160) NOT NULL,
		price_cents INT UNSIGNED NOT NULL,
		session_date CHAR(10) NOT NULL,
		session_start VARCHAR(8) NOT NULL,
		session_end VARCHAR(8) NOT NULL,
		status ENUM('pending','confirmed','completed','cancelled') NOT NULL DEFAULT 'pending',
		notes TEXT NULL,
		order_ref VARCHAR(128) NOT NULL DEFAULT '',
		payment_ref VARCHAR(128) NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_bookings_user (user_id),
		KEY idx_bookings_order_ref (order_ref),
		KEY idx_bookings_status_created (status, created_at),
		CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users(id),
		CONSTRAINT fk_bookings_package FOREIGN KEY (package_id) REFERENCES packages(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS gallery_items (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		type ENUM('photo','reel') NOT NULL,
		src VARCHAR(512) NOT NULL,
		thumbnail VARCHAR(512) NOT NULL DEFAULT '',
		title VARCHAR(160) NOT NULL DEFAULT '',
		alt VARCHAR(255) NOT NULL DEFAULT '',
		category VARCHAR(80) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS contact_messages (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		email VARCHAR(255) NOT NULL,
		mobile VARCHAR(32) NOT NULL DEFAULT '',
		subject VARCHAR(200) NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
