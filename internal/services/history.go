package services

import (
	"context"
	"fmt"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// HistoryService reads the message history between two users.
type HistoryService struct {
	messages repositories.MessageRepository
}

func NewHistoryService(messages repositories.MessageRepository) *HistoryService {
	return &HistoryService{messages: messages}
}

// ListMessages returns every message exchanged between userID and
// otherUserID in either direction, oldest first.
func (s *HistoryService) ListMessages(ctx context.Context, userID, otherUserID string) ([]models.MessageView, error) {
	if err := validateInput(historyInput{OtherUserID: otherUserID}); err != nil {
		return nil, err
	}

	views, err := s.messages.ListBetween(ctx, userID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if views == nil {
		views = []models.MessageView{}
	}
	return views, nil
}
