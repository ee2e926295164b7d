package config

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
)

type DatabaseConfig struct {
	Server   string
	Database string
	User     string
	Password string
}

func NewDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Server:   getEnv("DB_HOST", "127.0.0.1:3306"),
		Database: getEnv("DB_NAME", "unibox"),
		User:     getEnv("DB_USER", "unibox"),
		Password: os.Getenv("DB_PASSWORD"),
	}
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&multiStatements=true&loc=UTC&time_zone='%%2B00:00'",
		c.User, c.Password, c.Server, c.Database)
}

func ConnectDatabase() (*sql.DB, error) {
	config := NewDatabaseConfig()
	db, err := sql.Open("mysql", config.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}

	return db, nil
}

// ensureSchema bootstraps the tables the engine depends on. The unique keys
// are load-bearing: they are what makes contact/thread creation race-safe
// and inbound webhook redelivery a no-op.
func ensureSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS contacts (
		id CHAR(36) NOT NULL PRIMARY KEY,
		tenant_id VARCHAR(64) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		name VARCHAR(255) NULL,
		wa_opt_in TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_contacts_tenant_phone (tenant_id, phone)
	);
	CREATE TABLE IF NOT EXISTS threads (
		id CHAR(36) NOT NULL PRIMARY KEY,
		tenant_id VARCHAR(64) NOT NULL,
		contact_id CHAR(36) NOT NULL,
		channel ENUM('sms','whatsapp') NOT NULL,
		owner_id VARCHAR(64) NULL,
		last_message_at DATETIME(3) NOT NULL,
		unread_count INT NOT NULL DEFAULT 0,
		created_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_threads_tenant_contact_channel (tenant_id, contact_id, channel),
		KEY ix_threads_tenant_last (tenant_id, last_message_at)
	);
	CREATE TABLE IF NOT EXISTS messages (
		id CHAR(36) NOT NULL PRIMARY KEY,
		tenant_id VARCHAR(64) NOT NULL,
		thread_id CHAR(36) NOT NULL,
		author_id VARCHAR(64) NULL,
		channel ENUM('sms','whatsapp') NOT NULL,
		direction ENUM('inbound','outbound') NOT NULL,
		body TEXT NOT NULL,
		media JSON NULL,
		status ENUM('scheduled','sending','sent','delivered','failed') NOT NULL,
		provider_id VARCHAR(64) NULL,
		scheduled_at DATETIME(3) NULL,
		sent_at DATETIME(3) NULL,
		created_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_messages_provider (tenant_id, channel, direction, provider_id),
		KEY ix_messages_thread_created (thread_id, created_at),
		KEY ix_messages_due (status, scheduled_at)
	);
	CREATE TABLE IF NOT EXISTS notes (
		id CHAR(36) NOT NULL PRIMARY KEY,
		tenant_id VARCHAR(64) NOT NULL,
		thread_id CHAR(36) NOT NULL,
		author_id VARCHAR(64) NOT NULL,
		body TEXT NOT NULL,
		visibility ENUM('public','private') NOT NULL DEFAULT 'public',
		created_at DATETIME(3) NOT NULL,
		KEY ix_notes_thread_created (thread_id, created_at)
	);
	CREATE TABLE IF NOT EXISTS event_log (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		tenant_id VARCHAR(64) NOT NULL,
		type VARCHAR(64) NOT NULL,
		payload JSON NULL,
		created_at DATETIME(3) NOT NULL
	);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("error creating schema: %v", err)
	}
	return nil
}
