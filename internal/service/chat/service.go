package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spark-dating/spark-server/internal/app"
	"github.com/spark-dating/spark-server/internal/db"
	svcErr "github.com/spark-dating/spark-server/internal/errors"
	"github.com/spark-dating/spark-server/internal/notify"
	"github.com/spark-dating/spark-server/internal/repository"
	"github.com/spark-dating/spark-server/internal/service/unread"
	"github.com/spark-dating/spark-server/internal/storage"
)

// Attachment describes an uploaded file accompanying a message.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Key  string `json:"key"`
}

// deletedPayload is the messageDeleted push body.
type deletedPayload struct {
	MessageID string `json:"messageId"`
}

// Service orchestrates message delivery: persistence, fanout to both
// parties and the unread counter update run as one logical unit per
// message. Persistence failures abort the operation; push and counter
// refresh failures never do, since durable state is authoritative.
type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	messages *repository.MessageRepository
	notifier *notify.Notifier
	unread   *unread.Service
	objects  storage.ObjectStore
}

// NewService creates a chat service with dependencies from AppContext.
// objects may be nil when no attachment store is configured.
func NewService(
	appCtx *app.AppContext,
	notifier *notify.Notifier,
	unreadSvc *unread.Service,
	objects storage.ObjectStore,
) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
		notifier: notifier,
		unread:   unreadSvc,
		objects:  objects,
	}
}

// SendMessage persists a new unread message, echoes it to both parties'
// live connections and triggers the receiver's unread recount.
func (s *Service) SendMessage(
	ctx context.Context,
	senderID, receiverID uint64,
	content string,
	attachment *Attachment,
) (*db.Message, error) {
	if senderID == receiverID {
		return nil, svcErr.InvalidArgument("cannot message yourself")
	}
	if content == "" && attachment == nil {
		return nil, svcErr.InvalidArgument("message needs content or an attachment")
	}

	for _, id := range []uint64{senderID, receiverID} {
		if ok, err := s.users.Exists(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to resolve user: %w", err)
		} else if !ok {
			return nil, fmt.Errorf("user %d: %w", id, svcErr.ErrNotAuthorized)
		}
	}

	msg := &db.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Read:       false,
	}
	if attachment != nil {
		msg.AttachmentURL = attachment.URL
		msg.AttachmentName = attachment.Name
		msg.AttachmentType = attachment.Type
		msg.AttachmentSize = attachment.Size
		msg.AttachmentKey = attachment.Key
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	// live push to the receiver, plus an echo so the sender's other
	// devices see their own message
	s.notifier.Notify(receiverID, notify.EventNewMessage, msg)
	s.notifier.Notify(senderID, notify.EventNewMessage, msg)

	if err := s.unread.OnMessageSent(ctx, receiverID, senderID); err != nil {
		// counters recover on the next recount; the send already committed
		s.appCtx.Logger.Warn("unread recount after send failed",
			"receiver", receiverID, "sender", senderID, "err", err)
	}

	return msg, nil
}

// DeleteMessage removes a message on behalf of its original sender.
//
// Behavior:
//   - ErrNotFound when the message does not exist.
//   - ErrForbidden when the requester is not the sender.
//   - An externally stored attachment is deleted best-effort first; a
//     failure there is logged and the message delete proceeds.
//   - Both parties' live connections learn of the deletion; the unread
//     counters refresh when the deleted message was still unread.
func (s *Service) DeleteMessage(ctx context.Context, requesterID uint64, messageID string) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("message %s: %w", messageID, err)
	}
	if msg.SenderID != requesterID {
		return fmt.Errorf("message %s: %w", messageID, svcErr.ErrForbidden)
	}

	if msg.AttachmentKey != "" && s.objects != nil {
		if err := s.objects.Delete(ctx, msg.AttachmentKey); err != nil {
			s.appCtx.Logger.Warn("attachment cleanup failed",
				"message_id", messageID, "key", msg.AttachmentKey, "err", err)
		}
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	if !msg.Read {
		if err := s.unread.OnMessageDeleted(ctx, msg.ReceiverID, msg.SenderID); err != nil {
			s.appCtx.Logger.Warn("unread recount after delete failed",
				"receiver", msg.ReceiverID, "err", err)
		}
	}

	payload := deletedPayload{MessageID: messageID}
	s.notifier.Notify(msg.SenderID, notify.EventMessageDeleted, payload)
	s.notifier.Notify(msg.ReceiverID, notify.EventMessageDeleted, payload)

	return nil
}

// Conversation returns the message history between two users, oldest
// first, cursor-paginated.
func (s *Service) Conversation(
	ctx context.Context,
	userID, otherID uint64,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.messages.GetConversation(ctx, userID, otherID, paginationToken, limit)
}
