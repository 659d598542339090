package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrPostNotFound = errors.New("post not found")

// PostRepository reads posts that can be shared into a conversation.
type PostRepository interface {
	GetPost(ctx context.Context, postID string) (models.Post, error)
}

// PostRepo is a sqlx implementation of PostRepository.
type PostRepo struct {
	db *sqlx.DB
}

// NewPostRepo constructs a PostRepo.
func NewPostRepo(db *sqlx.DB) *PostRepo {
	return &PostRepo{db: db}
}

// GetPost fetches a post by id.
func (r *PostRepo) GetPost(ctx context.Context, postID string) (models.Post, error) {
	var p models.Post
	err := r.db.GetContext(ctx, &p, `SELECT id, user_id, title, description, media_url, media_type FROM posts WHERE id=$1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, ErrPostNotFound
	}
	return p, err
}
