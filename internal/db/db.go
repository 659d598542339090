package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the postgres pool and, when migrate is set, ensures the schema.
func Connect(ctx context.Context, dsn string, migrate bool) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if !migrate {
		return db, nil
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Migrations is the ordered schema. Users, posts and follows are owned by
// the profile service; they are declared here so the messaging joins resolve
// on a fresh database.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id CHAR(24) PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            profile_picture TEXT NOT NULL DEFAULT '/uploads/profile_pictures/default.png'
        );`,
	`CREATE TABLE IF NOT EXISTS follows (
            follower_id CHAR(24) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            followee_id CHAR(24) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (follower_id, followee_id)
        );`,
	`CREATE TABLE IF NOT EXISTS posts (
            id CHAR(24) PRIMARY KEY,
            user_id CHAR(24) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            media_url TEXT NOT NULL,
            media_type TEXT NOT NULL CHECK (media_type IN ('image', 'video'))
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id CHAR(24) PRIMARY KEY,
            sender_id CHAR(24) NOT NULL,
            receiver_id CHAR(24) NOT NULL,
            content TEXT NOT NULL,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            shared_post_id CHAR(24),
            created_at TIMESTAMPTZ NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS messages_pair_created_idx ON messages (sender_id, receiver_id, created_at);`,
}

// Migrate applies Migrations in order.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range Migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
