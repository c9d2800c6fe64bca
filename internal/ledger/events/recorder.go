// Package events appends and reads the per-order audit trail shared by
// checkout, the order workflow and the payment ledger.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

// Entry captures the immutable data a ledger event requires.
type Entry struct {
	OrderID     uuid.UUID
	ActorUserID *uuid.UUID
	Type        enums.LedgerEventType
	Amount      *decimal.Decimal
	FromStatus  *enums.OrderStatus
	ToStatus    *enums.OrderStatus
	Metadata    map[string]any
}

// Appender is the write side used inside other services' transactions.
type Appender interface {
	AppendTx(ctx context.Context, tx *gorm.DB, entry Entry) (*models.LedgerEvent, error)
}

type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger event repository required")
	}
	return &Recorder{repo: repo}, nil
}

// AppendTx validates entry and writes it with tx. Events are never updated.
func (r *Recorder) AppendTx(ctx context.Context, tx *gorm.DB, entry Entry) (*models.LedgerEvent, error) {
	if entry.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if !entry.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", entry.Type)
	}

	metadata := json.RawMessage(`{}`)
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal ledger metadata: %w", err)
		}
		metadata = raw
	}

	event := &models.LedgerEvent{
		OrderID:     entry.OrderID,
		ActorUserID: entry.ActorUserID,
		Type:        entry.Type,
		Amount:      entry.Amount,
		FromStatus:  entry.FromStatus,
		ToStatus:    entry.ToStatus,
		Metadata:    metadata,
	}
	if err := r.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// List returns the trail of one order, oldest first.
func (r *Recorder) List(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return r.repo.ListByOrderID(ctx, orderID)
}

// StatusPtr is a small helper for building entries.
func StatusPtr(s enums.OrderStatus) *enums.OrderStatus {
	return &s
}
