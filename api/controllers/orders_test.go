package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/api/middleware"
	"github.com/farmconnect/farmconnect-backend/internal/checkout"
	"github.com/farmconnect/farmconnect-backend/internal/ledger"
	"github.com/farmconnect/farmconnect-backend/internal/orders"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

type stubCheckoutService struct {
	buyerID uuid.UUID
	input   checkout.CheckoutInput
	result  *checkout.Result
	err     error
}

func (s *stubCheckoutService) Checkout(ctx context.Context, buyerID uuid.UUID, input checkout.CheckoutInput) (*checkout.Result, error) {
	s.buyerID = buyerID
	s.input = input
	return s.result, s.err
}

type stubOrdersService struct {
	orders.Service
	actor  orders.Actor
	target enums.OrderStatus
	reason string
	called bool
	err    error
}

func (s *stubOrdersService) AdvanceStatus(ctx context.Context, actor orders.Actor, orderID uuid.UUID, target enums.OrderStatus) (*orders.OrderDTO, error) {
	s.called = true
	s.actor = actor
	s.target = target
	if s.err != nil {
		return nil, s.err
	}
	return &orders.OrderDTO{ID: orderID, Status: target}, nil
}

func (s *stubOrdersService) Cancel(ctx context.Context, actor orders.Actor, orderID uuid.UUID, reason string) (*orders.OrderDTO, error) {
	s.called = true
	s.actor = actor
	s.reason = reason
	if s.err != nil {
		return nil, s.err
	}
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatusCancelled}, nil
}

type stubLedgerService struct {
	ledger.Service
	input  ledger.RecordPaymentInput
	called bool
	err    error
}

func (s *stubLedgerService) RecordPayment(ctx context.Context, buyerID, orderID uuid.UUID, input ledger.RecordPaymentInput) (*ledger.PaymentDTO, error) {
	s.called = true
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &ledger.PaymentDTO{OrderID: orderID, Amount: input.Amount, TransactionID: input.TransactionID, OrderStatus: enums.OrderStatusPaid}, nil
}

func newRequest(method, path, body string, userID uuid.UUID, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	ctx := req.Context()
	if userID != uuid.Nil {
		ctx = middleware.WithUserID(ctx, userID.String())
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestCheckoutCreatesOrders(t *testing.T) {
	t.Parallel()

	buyerID := uuid.New()
	productID := uuid.New()
	svc := &stubCheckoutService{result: &checkout.Result{Total: decimal.RequireFromString("7.50")}}
	body := `{"items":[{"product_id":"` + productID.String() + `","quantity":3}]}`

	resp := httptest.NewRecorder()
	Checkout(svc, logger.Nop()).ServeHTTP(resp, newRequest(http.MethodPost, "/api/buyer/checkout", body, buyerID, nil))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.buyerID != buyerID {
		t.Fatalf("expected buyer %s got %s", buyerID, svc.buyerID)
	}
	if len(svc.input.Items) != 1 || svc.input.Items[0].Quantity != 3 {
		t.Fatalf("unexpected items %+v", svc.input.Items)
	}
}

func TestCheckoutWithoutBodyUsesCart(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{result: &checkout.Result{}}
	resp := httptest.NewRecorder()
	Checkout(svc, logger.Nop()).ServeHTTP(resp, newRequest(http.MethodPost, "/api/buyer/checkout", "", uuid.New(), nil))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if len(svc.input.Items) != 0 {
		t.Fatalf("expected no explicit items, got %d", len(svc.input.Items))
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")}
	resp := httptest.NewRecorder()
	Checkout(svc, logger.Nop()).ServeHTTP(resp, newRequest(http.MethodPost, "/api/buyer/checkout", "", uuid.New(), nil))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp.Body.Bytes()); code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestCheckoutRequiresUser(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{}
	resp := httptest.NewRecorder()
	Checkout(svc, logger.Nop()).ServeHTTP(resp, newRequest(http.MethodPost, "/api/buyer/checkout", "", uuid.Nil, nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestFarmerUpdateOrderStatus(t *testing.T) {
	t.Parallel()

	farmerID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrdersService{}
	req := newRequest(http.MethodPost, "/api/farmer/orders/x/status", `{"status":"confirmed"}`, farmerID, map[string]string{"orderId": orderID.String()})

	resp := httptest.NewRecorder()
	FarmerUpdateOrderStatus(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.target != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed target got %s", svc.target)
	}
	if svc.actor != orders.FarmerActor(farmerID) {
		t.Fatalf("expected farmer actor got %+v", svc.actor)
	}
}

func TestFarmerUpdateOrderStatusUnknownStatus(t *testing.T) {
	t.Parallel()

	svc := &stubOrdersService{}
	req := newRequest(http.MethodPost, "/api/farmer/orders/x/status", `{"status":"teleported"}`, uuid.New(), map[string]string{"orderId": uuid.NewString()})

	resp := httptest.NewRecorder()
	FarmerUpdateOrderStatus(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if svc.called {
		t.Fatal("service should not be called for an unknown status")
	}
}

func TestFarmerUpdateOrderStatusRejectsBadOrderID(t *testing.T) {
	t.Parallel()

	svc := &stubOrdersService{}
	req := newRequest(http.MethodPost, "/api/farmer/orders/x/status", `{"status":"confirmed"}`, uuid.New(), map[string]string{"orderId": "nope"})

	resp := httptest.NewRecorder()
	FarmerUpdateOrderStatus(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestBuyerCancelOrderPassesReason(t *testing.T) {
	t.Parallel()

	buyerID := uuid.New()
	svc := &stubOrdersService{}
	req := newRequest(http.MethodPost, "/api/buyer/orders/x/cancel", `{"reason":"changed my mind"}`, buyerID, map[string]string{"orderId": uuid.NewString()})

	resp := httptest.NewRecorder()
	BuyerCancelOrder(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.reason != "changed my mind" || svc.actor != orders.BuyerActor(buyerID) {
		t.Fatalf("unexpected cancel call: %+v reason=%q", svc.actor, svc.reason)
	}
}

func TestBuyerRecordPayment(t *testing.T) {
	t.Parallel()

	svc := &stubLedgerService{}
	req := newRequest(http.MethodPost, "/api/buyer/orders/x/payment", `{"amount":"12.50","transaction_id":"txn-1"}`, uuid.New(), map[string]string{"orderId": uuid.NewString()})

	resp := httptest.NewRecorder()
	BuyerRecordPayment(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if !svc.input.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected amount %s", svc.input.Amount)
	}
	if svc.input.TransactionID != "txn-1" {
		t.Fatalf("unexpected transaction id %q", svc.input.TransactionID)
	}
}

func TestBuyerRecordPaymentRequiresAmount(t *testing.T) {
	t.Parallel()

	svc := &stubLedgerService{}
	req := newRequest(http.MethodPost, "/api/buyer/orders/x/payment", `{"transaction_id":"txn-1"}`, uuid.New(), map[string]string{"orderId": uuid.NewString()})

	resp := httptest.NewRecorder()
	BuyerRecordPayment(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.called {
		t.Fatal("ledger should not be called without an amount")
	}
}

func TestBuyerRecordPaymentAmountMismatch(t *testing.T) {
	t.Parallel()

	svc := &stubLedgerService{err: pkgerrors.New(pkgerrors.CodeAmountMismatch, "amount does not match order total")}
	req := newRequest(http.MethodPost, "/api/buyer/orders/x/payment", `{"amount":1,"transaction_id":"txn-1"}`, uuid.New(), map[string]string{"orderId": uuid.NewString()})

	resp := httptest.NewRecorder()
	BuyerRecordPayment(svc, logger.Nop()).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp.Body.Bytes()); code != string(pkgerrors.CodeAmountMismatch) {
		t.Fatalf("unexpected code %s", code)
	}
}
