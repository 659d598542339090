package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads users and the follow graph.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	ListFollowing(ctx context.Context, userID string) ([]string, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches the display attributes of a user.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, profile_picture FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}

// ListFollowing returns the ids userID follows, in the order they were followed.
// ErrUserNotFound is returned when userID itself does not exist.
func (r *UserRepo) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT followee_id FROM follows WHERE follower_id=$1 ORDER BY created_at ASC, followee_id ASC`, userID)
	return ids, err
}
