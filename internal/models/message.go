package models

import "time"

// Message is a direct message as stored. SharedPostID is set when the
// message carries a shared post.
type Message struct {
	ID           string    `db:"id" json:"id"`
	SenderID     string    `db:"sender_id" json:"sender_id"`
	ReceiverID   string    `db:"receiver_id" json:"receiver_id"`
	Content      string    `db:"content" json:"content"`
	Read         bool      `db:"read" json:"read"`
	SharedPostID *string   `db:"shared_post_id" json:"shared_post_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserRef is the denormalized author/recipient attached to a message.
type UserRef struct {
	ID             string `db:"id" json:"id"`
	Username       string `db:"username" json:"username"`
	ProfilePicture string `db:"profile_picture" json:"profile_picture"`
}

// PostRef is the lightweight projection of a shared post.
type PostRef struct {
	ID          string `db:"id" json:"id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	MediaURL    string `db:"media_url" json:"media_url"`
	MediaType   string `db:"media_type" json:"media_type"`
}

// MessageView is a message with its references resolved for the read paths.
type MessageView struct {
	ID         string    `json:"id"`
	Sender     UserRef   `json:"sender"`
	Receiver   UserRef   `json:"receiver"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	SharedPost *PostRef  `json:"shared_post"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationSummary pairs a followed user with the latest exchange.
type ConversationSummary struct {
	UserID         string     `json:"user_id"`
	Username       string     `json:"username"`
	ProfilePicture string     `json:"profile_picture"`
	LastMessage    *string    `json:"last_message"`
	LastMessageAt  *time.Time `json:"last_message_at"`
}
