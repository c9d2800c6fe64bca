package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

// LedgerEvent records an immutable lifecycle or money event tied to an order.
type LedgerEvent struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	ActorUserID *uuid.UUID            `gorm:"column:actor_user_id;type:uuid"`
	Type        enums.LedgerEventType `gorm:"column:type;type:ledger_event_type;not null"`
	Amount      *decimal.Decimal      `gorm:"column:amount;type:numeric(10,2)"`
	FromStatus  *enums.OrderStatus    `gorm:"column:from_status;type:order_status"`
	ToStatus    *enums.OrderStatus    `gorm:"column:to_status;type:order_status"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
