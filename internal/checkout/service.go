// Package checkout turns a buyer's lines into pending orders, taking stock
// all-or-nothing.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmconnect/farmconnect-backend/internal/cart"
	"github.com/farmconnect/farmconnect-backend/internal/checkout/helpers"
	"github.com/farmconnect/farmconnect-backend/internal/checkout/reservation"
	ledgerevents "github.com/farmconnect/farmconnect-backend/internal/ledger/events"
	"github.com/farmconnect/farmconnect-backend/internal/orders"
	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/metrics"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox"
	"github.com/farmconnect/farmconnect-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) error
}

type cartSource interface {
	Lines(ctx context.Context, buyerID uuid.UUID) ([]cart.Line, error)
	Clear(ctx context.Context, buyerID uuid.UUID) error
}

type outcomeRecorder interface {
	CheckoutOutcome(outcome string)
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) error {
	return reservation.DecrementStock(ctx, tx, requests)
}

// Service executes checkout orchestration.
type Service interface {
	Checkout(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*Result, error)
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// CheckoutInput carries explicit items; when empty the stored cart is used.
type CheckoutInput struct {
	Items []ItemInput `json:"items" validate:"omitempty,dive"`
}

// Result lists the orders created, one per farmer.
type Result struct {
	Orders []orders.OrderDTO `json:"orders"`
	Total  decimal.Decimal   `json:"total"`
}

type service struct {
	tx          txRunner
	repo        Repository
	reservation stockReserver
	cart        cartSource
	outbox      outboxPublisher
	journal     ledgerevents.Appender
	metrics     outcomeRecorder
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the checkout service. reserver defaults to the
// conditional-decrement engine and metrics may be nil.
func NewService(
	tx txRunner,
	repo Repository,
	reserver stockReserver,
	cartSvc cartSource,
	publisher outboxPublisher,
	journal ledgerevents.Appender,
	metrics outcomeRecorder,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if reserver == nil {
		reserver = reservationEngine{}
	}
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if journal == nil {
		return nil, fmt.Errorf("ledger journal required")
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:          tx,
		repo:        repo,
		reservation: reserver,
		cart:        cartSvc,
		outbox:      publisher,
		journal:     journal,
		metrics:     metrics,
		logg:        logg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Checkout(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*Result, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	result, err := s.checkout(ctx, buyerID, input)
	switch {
	case err == nil:
		s.metrics.CheckoutOutcome(metrics.CheckoutSucceeded)
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
		s.metrics.CheckoutOutcome(metrics.CheckoutInsufficientStock)
	default:
		s.metrics.CheckoutOutcome(metrics.CheckoutFailed)
	}
	return result, err
}

func (s *service) checkout(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*Result, error) {
	raw := make([]helpers.Line, 0, len(input.Items))
	for _, item := range input.Items {
		raw = append(raw, helpers.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	fromCart := len(raw) == 0
	if fromCart {
		stored, err := s.cart.Lines(ctx, buyerID)
		if err != nil {
			return nil, err
		}
		for _, line := range stored {
			raw = append(raw, helpers.Line{ProductID: line.ProductID, Quantity: line.Quantity})
		}
	}

	lines, err := helpers.NormalizeLines(raw)
	if err != nil {
		return nil, err
	}

	var created []models.Order
	names := make(map[uuid.UUID]string, len(lines))
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ProductID)
		}
		products, err := repo.FindProducts(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		for _, line := range lines {
			product, ok := products[line.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": line.ProductID})
			}
			names[line.ProductID] = product.Name
		}

		requests := make([]reservation.StockRequest, 0, len(lines))
		for _, line := range lines {
			requests = append(requests, reservation.StockRequest{ProductID: line.ProductID, Qty: line.Quantity})
		}
		if err := s.reservation.Reserve(ctx, tx, requests); err != nil {
			return err
		}

		now := s.now()
		for _, group := range helpers.GroupByFarmer(lines, products) {
			order := buildOrder(buyerID, group, products)
			if err := repo.CreateOrder(ctx, &order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}
			if err := s.recordCreated(ctx, tx, buyerID, order, now); err != nil {
				return err
			}
			created = append(created, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fromCart {
		if err := s.cart.Clear(ctx, buyerID); err != nil {
			logCtx := s.logg.WithUserID(ctx, buyerID.String())
			s.logg.Error(logCtx, "clear cart after checkout", err)
		}
	}

	result := &Result{Orders: make([]orders.OrderDTO, 0, len(created)), Total: decimal.Zero}
	for _, order := range created {
		// product rows were read before the decrement; only the name is reported
		dto := orders.NewOrderDTO(order)
		for i := range dto.Items {
			dto.Items[i].ProductName = names[dto.Items[i].ProductID]
		}
		result.Orders = append(result.Orders, dto)
		result.Total = result.Total.Add(order.TotalAmount)
	}
	return result, nil
}

func buildOrder(buyerID uuid.UUID, group helpers.FarmerGroup, products map[uuid.UUID]models.Product) models.Order {
	order := models.Order{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		FarmerID:    group.FarmerID,
		Status:      enums.OrderStatusPending,
		TotalAmount: group.Total,
		Items:       make([]models.OrderItem, 0, len(group.Lines)),
	}
	for _, line := range group.Lines {
		product := products[line.ProductID]
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			PriceAtTime: product.Price,
		})
	}
	return order
}

func (s *service) recordCreated(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID, order models.Order, now time.Time) error {
	total := order.TotalAmount
	if _, err := s.journal.AppendTx(ctx, tx, ledgerevents.Entry{
		OrderID:     order.ID,
		ActorUserID: &buyerID,
		Type:        enums.LedgerEventOrderCreated,
		Amount:      &total,
		ToStatus:    ledgerevents.StatusPtr(enums.OrderStatusPending),
		Metadata:    map[string]any{"item_count": len(order.Items)},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger event")
	}

	items := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.OrderLine{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
		})
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: buyerID, Role: string(enums.UserTypeBuyer)},
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			BuyerID:     buyerID,
			FarmerID:    order.FarmerID,
			TotalAmount: total,
			Items:       items,
			CreatedAt:   now,
		},
		OccurredAt: now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
	}
	return nil
}

type noopMetrics struct{}

func (noopMetrics) CheckoutOutcome(string) {}
