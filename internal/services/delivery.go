package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// SharedPostContent is the text stored on every shared-post message.
const SharedPostContent = "Shared a post with you."

// Pusher delivers an event to a user's live connection, if there is one.
type Pusher interface {
	Push(userID, event string, payload any) bool
}

// DeliveryService persists direct and shared-post messages.
type DeliveryService struct {
	messages         repositories.MessageRepository
	users            repositories.UserRepository
	posts            repositories.PostRepository
	pusher           Pusher
	clock            *Clock
	shareConcurrency int
	log              zerolog.Logger
}

func NewDeliveryService(
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	posts repositories.PostRepository,
	pusher Pusher,
	shareConcurrency int,
	log zerolog.Logger,
) *DeliveryService {
	if shareConcurrency <= 0 {
		shareConcurrency = 1
	}
	return &DeliveryService{
		messages:         messages,
		users:            users,
		posts:            posts,
		pusher:           pusher,
		clock:            NewClock(),
		shareConcurrency: shareConcurrency,
		log:              log.With().Str("component", "delivery").Logger(),
	}
}

// SendDirect stores one message from senderID to receiverID and returns it
// with sender and receiver resolved. It does not push; the sending client
// announces the message over its own connection.
func (s *DeliveryService) SendDirect(ctx context.Context, senderID, receiverID, content string) (models.MessageView, error) {
	if err := validateInput(sendInput{ReceiverID: receiverID, Content: content}); err != nil {
		return models.MessageView{}, err
	}

	receiver, err := s.users.GetUser(ctx, receiverID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.MessageView{}, fmt.Errorf("%w: receiver not found", ErrNotFound)
		}
		return models.MessageView{}, fmt.Errorf("load receiver %s: %w", receiverID, err)
	}

	return s.store(ctx, "direct", models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}, receiver.Ref(), nil)
}

// SharePost stores one shared-post message per recipient and pushes each to
// its recipient right after that recipient's write. Recipients are handled
// independently, so a failure for one leaves the others committed. The
// sender is skipped wherever listed; any other id listed twice gets two
// messages. Results keep the order of recipientIDs.
func (s *DeliveryService) SharePost(ctx context.Context, senderID, postID string, recipientIDs []string) ([]models.MessageView, error) {
	if err := validateInput(shareInput{PostID: postID, RecipientIDs: recipientIDs}); err != nil {
		return nil, err
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return nil, fmt.Errorf("%w: post not found", ErrNotFound)
		}
		return nil, fmt.Errorf("load post %s: %w", postID, err)
	}

	targets := lo.Reject(recipientIDs, func(id string, _ int) bool {
		return id == senderID
	})
	if len(targets) == 0 {
		return []models.MessageView{}, nil
	}

	postRef := post.Ref()
	results := make([]*models.MessageView, len(targets))
	var g errgroup.Group
	g.SetLimit(s.shareConcurrency)
	for i, recipientID := range targets {
		i, recipientID := i, recipientID
		g.Go(func() error {
			view, err := s.store(ctx, "share", models.Message{
				SenderID:     senderID,
				ReceiverID:   recipientID,
				Content:      SharedPostContent,
				SharedPostID: &post.ID,
			}, models.UserRef{ID: recipientID}, &postRef)
			if err != nil {
				s.log.Error().Err(err).
					Str("post_id", post.ID).
					Str("recipient_id", recipientID).
					Msg("share post to recipient failed")
				return nil
			}
			results[i] = &view
			s.pusher.Push(recipientID, models.EventReceiveMessage, models.LiveFromView(view))
			return nil
		})
	}
	_ = g.Wait()

	shared := lo.FilterMap(results, func(v *models.MessageView, _ int) (models.MessageView, bool) {
		if v == nil {
			return models.MessageView{}, false
		}
		return *v, true
	})
	if len(shared) == 0 {
		return nil, fmt.Errorf("share post %s: no recipient could be stored", post.ID)
	}
	return shared, nil
}

// store inserts msg and loads it back with its references resolved. Once the
// insert has succeeded the message counts as stored: if the read-back fails
// the view is built from the inserted row and the references the caller
// already holds.
func (s *DeliveryService) store(ctx context.Context, kind string, msg models.Message, receiver models.UserRef, post *models.PostRef) (models.MessageView, error) {
	msg.ID = models.NewID()
	msg.CreatedAt = s.clock.Now()

	created, err := s.messages.Create(ctx, msg)
	observability.ObservePersist(kind, err)
	if err != nil {
		return models.MessageView{}, fmt.Errorf("create message: %w", err)
	}
	if created.ID == "" {
		created = msg
	}

	view, err := s.messages.GetView(ctx, created.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("message_id", created.ID).Msg("read back stored message, using inserted row")
		return insertedView(created, receiver, post), nil
	}
	return view, nil
}

func insertedView(msg models.Message, receiver models.UserRef, post *models.PostRef) models.MessageView {
	receiver.ID = msg.ReceiverID
	view := models.MessageView{
		ID:        msg.ID,
		Sender:    models.UserRef{ID: msg.SenderID},
		Receiver:  receiver,
		Content:   msg.Content,
		Read:      msg.Read,
		CreatedAt: msg.CreatedAt,
	}
	if msg.SharedPostID != nil && post != nil {
		ref := *post
		view.SharedPost = &ref
	}
	return view
}
