package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// memoryMessages is an in-memory MessageRepository. Writes addressed to a
// receiver listed in failFor return an error.
type memoryMessages struct {
	mu      sync.Mutex
	byID    map[string]models.Message
	users   map[string]models.User
	posts   map[string]models.Post
	failFor map[string]bool
}

func newMemoryMessages(users ...models.User) *memoryMessages {
	m := &memoryMessages{
		byID:    map[string]models.Message{},
		users:   map[string]models.User{},
		posts:   map[string]models.Post{},
		failFor: map[string]bool{},
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryMessages) Create(_ context.Context, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[msg.ReceiverID] {
		return models.Message{}, errors.New("insert failed")
	}
	m.byID[msg.ID] = msg
	return msg, nil
}

func (m *memoryMessages) GetView(_ context.Context, id string) (models.MessageView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return models.MessageView{}, repositories.ErrMessageNotFound
	}
	return m.view(msg), nil
}

func (m *memoryMessages) ListBetween(_ context.Context, userID, otherUserID string) ([]models.MessageView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MessageView
	for _, msg := range m.byID {
		if pair(msg, userID, otherUserID) {
			out = append(out, m.view(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryMessages) LatestBetween(ctx context.Context, userID, otherUserID string) (models.MessageView, error) {
	views, _ := m.ListBetween(ctx, userID, otherUserID)
	if len(views) == 0 {
		return models.MessageView{}, repositories.ErrMessageNotFound
	}
	return views[len(views)-1], nil
}

func (m *memoryMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *memoryMessages) view(msg models.Message) models.MessageView {
	v := models.MessageView{
		ID:        msg.ID,
		Sender:    m.users[msg.SenderID].Ref(),
		Receiver:  m.users[msg.ReceiverID].Ref(),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	v.Sender.ID = msg.SenderID
	v.Receiver.ID = msg.ReceiverID
	if msg.SharedPostID != nil {
		ref := m.posts[*msg.SharedPostID].Ref()
		ref.ID = *msg.SharedPostID
		v.SharedPost = &ref
	}
	return v
}

func pair(msg models.Message, a, b string) bool {
	return (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a)
}

var _ repositories.MessageRepository = (*memoryMessages)(nil)
