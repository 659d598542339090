package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const conversationFanOut = 16

// ConversationService builds the conversation list from the follow graph.
type ConversationService struct {
	users    repositories.UserRepository
	messages repositories.MessageRepository
	log      zerolog.Logger
}

func NewConversationService(users repositories.UserRepository, messages repositories.MessageRepository, log zerolog.Logger) *ConversationService {
	return &ConversationService{
		users:    users,
		messages: messages,
		log:      log.With().Str("component", "conversations").Logger(),
	}
}

// ListConversations returns one summary per followed user. Summaries with a
// message come first, newest first; the rest follow in following order.
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	following, err := s.users.ListFollowing(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, fmt.Errorf("list following: %w", err)
	}

	entries := make([]*models.ConversationSummary, len(following))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conversationFanOut)
	for i, otherID := range following {
		i, otherID := i, otherID
		g.Go(func() error {
			summary, ok, err := s.summarize(gctx, userID, otherID)
			if err != nil {
				return err
			}
			if ok {
				entries[i] = &summary
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries := lo.FilterMap(entries, func(e *models.ConversationSummary, _ int) (models.ConversationSummary, bool) {
		if e == nil {
			return models.ConversationSummary{}, false
		}
		return *e, true
	})
	slices.SortStableFunc(summaries, compareSummaries)
	return summaries, nil
}

func (s *ConversationService) summarize(ctx context.Context, userID, otherID string) (models.ConversationSummary, bool, error) {
	latest, err := s.messages.LatestBetween(ctx, userID, otherID)
	if err == nil {
		other := latest.Sender
		if other.ID == userID {
			other = latest.Receiver
		}
		content := latest.Content
		at := latest.CreatedAt
		return models.ConversationSummary{
			UserID:         other.ID,
			Username:       other.Username,
			ProfilePicture: other.ProfilePicture,
			LastMessage:    &content,
			LastMessageAt:  &at,
		}, true, nil
	}
	if !errors.Is(err, repositories.ErrMessageNotFound) {
		return models.ConversationSummary{}, false, fmt.Errorf("latest message with %s: %w", otherID, err)
	}

	user, err := s.users.GetUser(ctx, otherID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			s.log.Debug().Str("user_id", otherID).Msg("dropping followed user that no longer exists")
			return models.ConversationSummary{}, false, nil
		}
		return models.ConversationSummary{}, false, fmt.Errorf("load user %s: %w", otherID, err)
	}
	return models.ConversationSummary{
		UserID:         user.ID,
		Username:       user.Username,
		ProfilePicture: user.ProfilePicture,
	}, true, nil
}

func compareSummaries(a, b models.ConversationSummary) int {
	switch {
	case a.LastMessageAt == nil && b.LastMessageAt == nil:
		return 0
	case a.LastMessageAt == nil:
		return 1
	case b.LastMessageAt == nil:
		return -1
	}
	return b.LastMessageAt.Compare(*a.LastMessageAt)
}
