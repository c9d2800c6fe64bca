package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	ledgerevents "github.com/farmconnect/farmconnect-backend/internal/ledger/events"
	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox/payloads"
	"github.com/farmconnect/farmconnect-backend/pkg/pagination"
)

const maxReasonLen = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type transitionRecorder interface {
	OrderTransition(from, to enums.OrderStatus)
}

// Service drives the order state machine and serves order reads.
type Service interface {
	AdvanceStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) (*OrderDTO, error)
	AdvanceStatusTx(ctx context.Context, tx *gorm.DB, actor Actor, order *models.Order, target enums.OrderStatus) error
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderDTO, error)
	GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, input ListInput) (*pagination.Page[OrderDTO], error)
	GetForFarmer(ctx context.Context, farmerUserID, orderID uuid.UUID) (*OrderDTO, error)
	ListForFarmer(ctx context.Context, farmerUserID uuid.UUID, input ListInput) (*pagination.Page[OrderDTO], error)
	FindForParticipant(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	journal ledgerevents.Appender
	metrics transitionRecorder
	now     func() time.Time
}

// NewService builds the order workflow service. metrics may be nil.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, journal ledgerevents.Appender, metrics transitionRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		journal: journal,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) AdvanceStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.loadOrder(ctx, s.repo.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		return s.AdvanceStatusTx(ctx, tx, actor, order, target)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// AdvanceStatusTx moves order one step forward inside the caller's transaction.
// order.Status is updated in place on success.
func (s *service) AdvanceStatusTx(ctx context.Context, tx *gorm.DB, actor Actor, order *models.Order, target enums.OrderStatus) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{"status": target})
	}
	from := order.Status
	if !from.CanAdvanceTo(target) {
		return invalidTransition(from, target, "status must advance one step at a time")
	}

	repo := s.repo.WithTx(tx)
	if err := s.authorizeAdvance(ctx, repo, actor, order, target); err != nil {
		return err
	}

	now := s.now()
	ok, err := repo.UpdateStatus(ctx, order.ID, from, target, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return invalidTransition(from, target, "order status changed concurrently")
	}

	if _, err := s.journal.AppendTx(ctx, tx, ledgerevents.Entry{
		OrderID:     order.ID,
		ActorUserID: actor.userIDPtr(),
		Type:        enums.LedgerEventStatusAdvanced,
		FromStatus:  ledgerevents.StatusPtr(from),
		ToStatus:    ledgerevents.StatusPtr(target),
		Metadata:    map[string]any{"actor": string(actor.Kind)},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger event")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(actor),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			FarmerID:   order.FarmerID,
			FromStatus: from,
			ToStatus:   target,
			ChangedAt:  now,
		},
		OccurredAt: now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}

	order.Status = target
	order.UpdatedAt = now
	s.metrics.OrderTransition(from, target)
	return nil
}

// authorizeAdvance enforces who may request each target: paid belongs to the
// ledger, every other step to the farmer owning the order.
func (s *service) authorizeAdvance(ctx context.Context, repo Repository, actor Actor, order *models.Order, target enums.OrderStatus) error {
	if target == enums.OrderStatusPaid {
		if actor.Kind != ActorLedger {
			return invalidTransition(order.Status, target, "paid is set by recording a payment")
		}
		return nil
	}
	if actor.Kind != ActorFarmer {
		return invalidTransition(order.Status, target, "only the owning farmer may advance this order")
	}
	owns, err := s.farmerOwns(ctx, repo, actor.UserID, order)
	if err != nil {
		return err
	}
	if !owns {
		return invalidTransition(order.Status, target, "only the owning farmer may advance this order")
	}
	return nil
}

func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason too long")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := s.authorizeCancel(ctx, repo, actor, order); err != nil {
			return err
		}

		from := order.Status
		if !from.Cancellable() {
			return invalidTransition(from, enums.OrderStatusCancelled, "only pending or confirmed orders can be cancelled")
		}

		now := s.now()
		ok, err := repo.MarkCancelled(ctx, order.ID, from, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return invalidTransition(from, enums.OrderStatusCancelled, "order status changed concurrently")
		}

		restored := make([]payloads.OrderLine, 0, len(order.Items))
		for _, item := range order.Items {
			if err := repo.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				if db.IsNotFound(err) {
					// the listing was deleted; nothing to restore into
					continue
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
			restored = append(restored, payloads.OrderLine{
				ProductID:   item.ProductID,
				Quantity:    item.Quantity,
				PriceAtTime: item.PriceAtTime,
			})
		}

		metadata := map[string]any{"actor": string(actor.Kind), "restored_lines": len(restored)}
		if reason != "" {
			metadata["reason"] = reason
		}
		if _, err := s.journal.AppendTx(ctx, tx, ledgerevents.Entry{
			OrderID:     order.ID,
			ActorUserID: actor.userIDPtr(),
			Type:        enums.LedgerEventOrderCancelled,
			FromStatus:  ledgerevents.StatusPtr(from),
			ToStatus:    ledgerevents.StatusPtr(enums.OrderStatusCancelled),
			Metadata:    metadata,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger event")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data: payloads.OrderCancelledEvent{
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				FarmerID:      order.FarmerID,
				FromStatus:    from,
				RestoredItems: restored,
				Reason:        reason,
				CancelledAt:   now,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order cancelled event")
		}

		s.metrics.OrderTransition(from, enums.OrderStatusCancelled)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, orderID)
}

// authorizeCancel hides orders the actor has no part in behind not found.
func (s *service) authorizeCancel(ctx context.Context, repo Repository, actor Actor, order *models.Order) error {
	switch actor.Kind {
	case ActorSystem:
		return nil
	case ActorBuyer:
		if actor.UserID != uuid.Nil && order.BuyerID == actor.UserID {
			return nil
		}
	case ActorFarmer:
		owns, err := s.farmerOwns(ctx, repo, actor.UserID, order)
		if err != nil {
			return err
		}
		if owns {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *service) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, input ListInput) (*pagination.Page[OrderDTO], error) {
	cursor, err := parseListInput(input)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByBuyer(ctx, buyerID, ListFilter{Status: input.Status}, cursor, input.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return buildPage(rows, input.Limit), nil
}

func (s *service) GetForFarmer(ctx context.Context, farmerUserID, orderID uuid.UUID) (*OrderDTO, error) {
	profileID, err := s.farmerProfileID(ctx, s.repo, farmerUserID)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.FarmerID != profileID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) ListForFarmer(ctx context.Context, farmerUserID uuid.UUID, input ListInput) (*pagination.Page[OrderDTO], error) {
	profileID, err := s.farmerProfileID(ctx, s.repo, farmerUserID)
	if err != nil {
		return nil, err
	}
	cursor, err := parseListInput(input)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByFarmer(ctx, profileID, ListFilter{Status: input.Status}, cursor, input.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list farmer orders")
	}
	return buildPage(rows, input.Limit), nil
}

// FindForParticipant returns the order when userID is its buyer or its farmer's user.
func (s *service) FindForParticipant(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID == userID {
		return order, nil
	}
	owns, err := s.farmerOwns(ctx, s.repo, userID, order)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	ids, err := s.repo.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale pending orders")
	}
	return ids, nil
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) reload(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) farmerProfileID(ctx context.Context, repo Repository, userID uuid.UUID) (uuid.UUID, error) {
	profileID, err := repo.FindFarmerProfileIDByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer profile required")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer profile")
	}
	return profileID, nil
}

func (s *service) farmerOwns(ctx context.Context, repo Repository, userID uuid.UUID, order *models.Order) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	profileID, err := repo.FindFarmerProfileIDByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer profile")
	}
	return profileID == order.FarmerID, nil
}

func parseListInput(input ListInput) (*pagination.Cursor, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	return pagination.ParseCursor(input.Cursor)
}

func buildPage(rows []models.Order, limit int) *pagination.Page[OrderDTO] {
	page := pagination.BuildPage(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := pagination.Map(page, NewOrderDTO)
	return &out
}

func invalidTransition(from, to enums.OrderStatus, message string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, message).WithDetails(map[string]any{
		"from": from,
		"to":   to,
	})
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Kind)}
}

type noopMetrics struct{}

func (noopMetrics) OrderTransition(enums.OrderStatus, enums.OrderStatus) {}
