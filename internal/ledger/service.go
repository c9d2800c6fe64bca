// Package ledger records buyer payments against confirmed orders and exposes
// the per-order audit trail.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	ledgerevents "github.com/farmconnect/farmconnect-backend/internal/ledger/events"
	"github.com/farmconnect/farmconnect-backend/internal/orders"
	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox/payloads"
)

const maxTransactionIDLen = 255

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type eventJournal interface {
	ledgerevents.Appender
	List(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error)
}

type orderWorkflow interface {
	AdvanceStatusTx(ctx context.Context, tx *gorm.DB, actor orders.Actor, order *models.Order, target enums.OrderStatus) error
	FindForParticipant(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
}

// Service is the payment ledger.
type Service interface {
	RecordPayment(ctx context.Context, buyerID, orderID uuid.UUID, input RecordPaymentInput) (*PaymentDTO, error)
	ListEvents(ctx context.Context, userID, orderID uuid.UUID) ([]EventDTO, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	journal eventJournal
	orders  orderWorkflow
	now     func() time.Time
}

func NewService(repo Repository, tx txRunner, outbox outboxPublisher, journal eventJournal, workflow orderWorkflow) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if journal == nil {
		return nil, fmt.Errorf("ledger journal required")
	}
	if workflow == nil {
		return nil, fmt.Errorf("order workflow required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		journal: journal,
		orders:  workflow,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// RecordPayment settles a confirmed order. The payment, the transition to paid,
// the ledger row and the outbox event commit together or not at all.
func (s *service) RecordPayment(ctx context.Context, buyerID, orderID uuid.UUID, input RecordPaymentInput) (*PaymentDTO, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	transactionID := strings.TrimSpace(input.TransactionID)
	if transactionID == "" || len(transactionID) > maxTransactionIDLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction_id must be 1-255 characters")
	}

	var result PaymentDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeOrderNotConfirmed, "order must be confirmed before payment").
				WithDetails(map[string]any{"status": order.Status})
		}

		expected := order.ItemsTotal()
		if !input.Amount.Equal(expected) {
			return pkgerrors.New(pkgerrors.CodeAmountMismatch, "payment amount does not match order total").
				WithDetails(map[string]any{
					"expected": expected.StringFixed(2),
					"received": input.Amount.StringFixed(2),
				})
		}

		if _, err := repo.FindPaymentByTransactionID(ctx, transactionID); err == nil {
			return duplicateTransaction(transactionID)
		} else if !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup transaction")
		}

		now := s.now()
		payment := &models.Payment{
			OrderID:       order.ID,
			TransactionID: &transactionID,
			Amount:        input.Amount,
			Status:        enums.PaymentStatusCompleted,
			PaidAt:        &now,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			if db.IsUniqueViolation(err, "") {
				return duplicateTransaction(transactionID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		if err := s.orders.AdvanceStatusTx(ctx, tx, orders.LedgerActor(buyerID), order, enums.OrderStatusPaid); err != nil {
			return err
		}

		amount := input.Amount
		if _, err := s.journal.AppendTx(ctx, tx, ledgerevents.Entry{
			OrderID:     order.ID,
			ActorUserID: &buyerID,
			Type:        enums.LedgerEventPaymentRecorded,
			Amount:      &amount,
			Metadata: map[string]any{
				"payment_id":     payment.ID.String(),
				"transaction_id": transactionID,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger event")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: string(enums.UserTypeBuyer)},
			Data: payloads.PaymentRecordedEvent{
				PaymentID:     payment.ID,
				OrderID:       order.ID,
				BuyerID:       buyerID,
				Amount:        amount,
				TransactionID: transactionID,
				PaidAt:        now,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment event")
		}

		result = newPaymentDTO(*payment, order.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) ListEvents(ctx context.Context, userID, orderID uuid.UUID) ([]EventDTO, error) {
	if _, err := s.orders.FindForParticipant(ctx, userID, orderID); err != nil {
		return nil, err
	}
	events, err := s.journal.List(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger events")
	}
	out := make([]EventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, newEventDTO(e))
	}
	return out, nil
}

func duplicateTransaction(transactionID string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "transaction already recorded").
		WithDetails(map[string]any{"transaction_id": transactionID})
}
