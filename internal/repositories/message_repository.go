package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the durable store for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	GetView(ctx context.Context, messageID string) (models.MessageView, error)
	ListBetween(ctx context.Context, userID, otherUserID string) ([]models.MessageView, error)
	LatestBetween(ctx context.Context, userID, otherUserID string) (models.MessageView, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// messageRow is one message joined with its sender, receiver and shared post.
type messageRow struct {
	ID               string         `db:"id"`
	Content          string         `db:"content"`
	Read             bool           `db:"read"`
	CreatedAt        time.Time      `db:"created_at"`
	SenderID         string         `db:"sender_id"`
	SenderUsername   sql.NullString `db:"sender_username"`
	SenderPicture    sql.NullString `db:"sender_picture"`
	ReceiverID       string         `db:"receiver_id"`
	ReceiverUsername sql.NullString `db:"receiver_username"`
	ReceiverPicture  sql.NullString `db:"receiver_picture"`
	PostID           sql.NullString `db:"post_id"`
	PostTitle        sql.NullString `db:"post_title"`
	PostDescription  sql.NullString `db:"post_description"`
	PostMediaURL     sql.NullString `db:"post_media_url"`
	PostMediaType    sql.NullString `db:"post_media_type"`
}

const viewSelect = `SELECT m.id, m.content, m.read, m.created_at,
        m.sender_id, s.username AS sender_username, s.profile_picture AS sender_picture,
        m.receiver_id, r.username AS receiver_username, r.profile_picture AS receiver_picture,
        p.id AS post_id, p.title AS post_title, p.description AS post_description,
        p.media_url AS post_media_url, p.media_type AS post_media_type
        FROM messages m
        LEFT JOIN users s ON s.id = m.sender_id
        LEFT JOIN users r ON r.id = m.receiver_id
        LEFT JOIN posts p ON p.id = m.shared_post_id`

const pairFilter = ` WHERE (m.sender_id=$1 AND m.receiver_id=$2) OR (m.sender_id=$2 AND m.receiver_id=$1)`

// Create inserts a message. ID and CreatedAt are assigned by the caller.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	var out models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, sender_id, receiver_id, content, read, shared_post_id, created_at)
        VALUES ($1, $2, $3, $4, FALSE, $5, $6)
        RETURNING id, sender_id, receiver_id, content, read, shared_post_id, created_at`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.SharedPostID, msg.CreatedAt).
		StructScan(&out)
	return out, err
}

// GetView loads one message with its references resolved.
func (r *MessageRepo) GetView(ctx context.Context, messageID string) (models.MessageView, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, viewSelect+` WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageView{}, ErrMessageNotFound
	}
	if err != nil {
		return models.MessageView{}, err
	}
	return row.view(), nil
}

// ListBetween returns every message exchanged by the pair, oldest first.
func (r *MessageRepo) ListBetween(ctx context.Context, userID, otherUserID string) ([]models.MessageView, error) {
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, viewSelect+pairFilter+` ORDER BY m.created_at ASC, m.id ASC`, userID, otherUserID); err != nil {
		return nil, err
	}
	views := make([]models.MessageView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.view())
	}
	return views, nil
}

// LatestBetween returns the most recent message of the pair.
func (r *MessageRepo) LatestBetween(ctx context.Context, userID, otherUserID string) (models.MessageView, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, viewSelect+pairFilter+` ORDER BY m.created_at DESC, m.id DESC LIMIT 1`, userID, otherUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageView{}, ErrMessageNotFound
	}
	if err != nil {
		return models.MessageView{}, err
	}
	return row.view(), nil
}

func (row messageRow) view() models.MessageView {
	v := models.MessageView{
		ID:        row.ID,
		Content:   row.Content,
		Read:      row.Read,
		CreatedAt: row.CreatedAt,
		Sender: models.UserRef{
			ID:             row.SenderID,
			Username:       row.SenderUsername.String,
			ProfilePicture: row.SenderPicture.String,
		},
		Receiver: models.UserRef{
			ID:             row.ReceiverID,
			Username:       row.ReceiverUsername.String,
			ProfilePicture: row.ReceiverPicture.String,
		},
	}
	if row.PostID.Valid {
		v.SharedPost = &models.PostRef{
			ID:          row.PostID.String,
			Title:       row.PostTitle.String,
			Description: row.PostDescription.String,
			MediaURL:    row.PostMediaURL.String,
			MediaType:   row.PostMediaType.String,
		}
	}
	return v
}
