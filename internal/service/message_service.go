package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type messageRepo interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	Inbox(ctx context.Context, userID string, page, size int) ([]models.MessageDetail, int, error)
	Sent(ctx context.Context, userID string, page, size int) ([]models.MessageDetail, int, error)
	MarkRead(ctx context.Context, id string, readAt time.Time) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type recipientChecker interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SendMessageRequest delivers one internal message.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Body        string `json:"body" validate:"required"`
}

// MessageService handles internal direct messaging.
type MessageService struct {
	messages  messageRepo
	users     recipientChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMessageService constructs MessageService.
func NewMessageService(messages messageRepo, users recipientChecker, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{messages: messages, users: users, validator: validate, logger: logger}
}

// Send delivers a message from sender to recipient.
func (s *MessageService) Send(ctx context.Context, senderID string, req SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	if req.RecipientID == senderID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot message yourself")
	}
	recipient, err := s.users.FindByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "recipient does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if !recipient.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recipient account is inactive")
	}

	message := &models.Message{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Subject:     req.Subject,
		Body:        req.Body,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	return message, nil
}

// Inbox returns received messages, newest first.
func (s *MessageService) Inbox(ctx context.Context, userID string, page, size int) ([]models.MessageDetail, int, error) {
	messages, total, err := s.messages.Inbox(ctx, userID, page, size)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inbox")
	}
	return messages, total, nil
}

// Sent returns sent messages, newest first.
func (s *MessageService) Sent(ctx context.Context, userID string, page, size int) ([]models.MessageDetail, int, error) {
	messages, total, err := s.messages.Sent(ctx, userID, page, size)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sent messages")
	}
	return messages, total, nil
}

// MarkRead flags a message read; only the recipient may do so.
func (s *MessageService) MarkRead(ctx context.Context, id, userID string) error {
	message, err := s.messages.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}
	if message.RecipientID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the recipient may mark a message read")
	}
	if message.Read {
		return nil
	}
	if err := s.messages.MarkRead(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark message read")
	}
	return nil
}

// UnreadCount returns the number of unread messages.
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.messages.UnreadCount(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread messages")
	}
	return count, nil
}
