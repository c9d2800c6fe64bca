// Package messaging implements buyer/farmer conversations and automated farmer replies.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox/payloads"
)

const MaxContentLength = 5000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type Service interface {
	StartConversation(ctx context.Context, userID uuid.UUID, input StartInput) (*ConversationDetailDTO, error)
	SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (*MessageDTO, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]ConversationDTO, error)
	GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*ConversationDetailDTO, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (*UnreadDTO, error)
	SendAutomatedMessage(ctx context.Context, input AutomatedInput) (*MessageDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

func NewService(repo Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("messaging repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: publisher,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// StartConversation finds or opens the thread between the caller and the
// product's farmer, optionally posting a first message.
func (s *service) StartConversation(ctx context.Context, userID uuid.UUID, input StartInput) (*ConversationDetailDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	var first string
	if input.FirstMessage != nil && strings.TrimSpace(*input.FirstMessage) != "" {
		var err error
		if first, err = normalizeContent(*input.FirstMessage); err != nil {
			return nil, err
		}
	}

	var convID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.FindProduct(ctx, input.ProductID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product.Farmer == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		farmerUserID := product.Farmer.UserID
		if farmerUserID == userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "you cannot message yourself about your own product")
		}

		productID := product.ID
		conv, err := repo.FindConversationFor(ctx, userID, farmerUserID, &productID)
		switch {
		case err == nil:
		case db.IsNotFound(err):
			conv = &models.Conversation{BuyerID: userID, FarmerID: farmerUserID, ProductID: &productID}
			if err := repo.CreateConversation(ctx, conv); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "conversation already exists")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create conversation")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find conversation")
		}
		convID = conv.ID

		if first == "" {
			return nil
		}
		loaded, err := repo.FindConversation(ctx, conv.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
		}
		_, err = s.post(ctx, tx, loaded, userID, first, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetConversation(ctx, userID, convID)
}

func (s *service) SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (*MessageDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	body, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	var dto MessageDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		conv, err := s.participantConversation(ctx, s.repo.WithTx(tx), userID, conversationID)
		if err != nil {
			return err
		}
		msg, err := s.post(ctx, tx, conv, userID, body, false)
		if err != nil {
			return err
		}
		dto = newMessageDTO(*msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// SendAutomatedMessage posts a reply on the farmer's side of the conversation.
func (s *service) SendAutomatedMessage(ctx context.Context, input AutomatedInput) (*MessageDTO, error) {
	if input.ConversationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conversation_id is required")
	}
	body, err := normalizeContent(input.Content)
	if err != nil {
		return nil, err
	}

	var dto MessageDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		conv, err := s.repo.WithTx(tx).FindConversation(ctx, input.ConversationID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
		}
		msg, err := s.post(ctx, tx, conv, conv.FarmerID, body, true)
		if err != nil {
			return err
		}
		dto = newMessageDTO(*msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (s *service) ListConversations(ctx context.Context, userID uuid.UUID) ([]ConversationDTO, error) {
	convs, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list conversations")
	}
	unread, err := s.repo.UnreadByConversation(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread")
	}
	ids := make([]uuid.UUID, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	last, err := s.repo.LastMessages(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load last messages")
	}

	out := make([]ConversationDTO, 0, len(convs))
	for _, c := range convs {
		dto := newConversationDTO(c)
		dto.UnreadCount = unread[c.ID]
		if msg, ok := last[c.ID]; ok {
			m := newMessageDTO(msg)
			dto.LastMessage = &m
		}
		out = append(out, dto)
	}
	return out, nil
}

// GetConversation returns the thread oldest first and marks the other side's messages read.
func (s *service) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*ConversationDetailDTO, error) {
	var out ConversationDetailDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		conv, err := s.participantConversation(ctx, repo, userID, conversationID)
		if err != nil {
			return err
		}
		if _, err := repo.MarkRead(ctx, conv.ID, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark messages read")
		}
		msgs, err := repo.ListMessages(ctx, conv.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
		}

		out.ConversationDTO = newConversationDTO(*conv)
		out.Messages = make([]MessageDTO, 0, len(msgs))
		for _, m := range msgs {
			out.Messages = append(out.Messages, newMessageDTO(m))
		}
		if n := len(out.Messages); n > 0 {
			last := out.Messages[n-1]
			out.LastMessage = &last
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (*UnreadDTO, error) {
	counts, err := s.repo.UnreadByConversation(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread")
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &UnreadDTO{Unread: total}, nil
}

func (s *service) participantConversation(ctx context.Context, repo Repository, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conv, err := repo.FindConversation(ctx, conversationID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}
	// Non-participants see the same error as a missing conversation.
	if !conv.Participant(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
	}
	return conv, nil
}

// post stores a message, bumps the conversation and hands buyer messages to the outbox.
func (s *service) post(ctx context.Context, tx *gorm.DB, conv *models.Conversation, senderID uuid.UUID, content string, automated bool) (*models.Message, error) {
	repo := s.repo.WithTx(tx)
	now := s.now()
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		IsAutomated:    automated,
		CreatedAt:      now,
	}
	if err := repo.CreateMessage(ctx, msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
	}
	if err := repo.TouchConversation(ctx, conv.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch conversation")
	}

	if automated || senderID != conv.BuyerID {
		return msg, nil
	}
	event := payloads.MessageSentEvent{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    conv.FarmerID,
		ProductID:      conv.ProductID,
		Content:        content,
		SentAt:         now,
	}
	if conv.Buyer != nil {
		event.SenderUsername = conv.Buyer.Username
	}
	if conv.Product != nil {
		event.ProductName = conv.Product.Name
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventMessageSent,
		AggregateType: enums.AggregateConversation,
		AggregateID:   conv.ID,
		Actor:         &outbox.ActorRef{UserID: senderID, Role: string(enums.UserTypeBuyer)},
		Data:          event,
		OccurredAt:    now,
	}); err != nil {
		return nil, err
	}
	return msg, nil
}

func normalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "message content is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("message content exceeds %d characters", MaxContentLength))
	}
	return trimmed, nil
}
