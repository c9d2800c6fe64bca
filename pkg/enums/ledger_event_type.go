package enums

// LedgerEventType is the kind of row appended to an order's ledger.
type LedgerEventType string

const (
	LedgerEventOrderCreated    LedgerEventType = "order_created"
	LedgerEventStatusAdvanced  LedgerEventType = "status_advanced"
	LedgerEventPaymentRecorded LedgerEventType = "payment_recorded"
	LedgerEventOrderCancelled  LedgerEventType = "order_cancelled"
)

var ledgerEventTypes = []LedgerEventType{
	LedgerEventOrderCreated,
	LedgerEventStatusAdvanced,
	LedgerEventPaymentRecorded,
	LedgerEventOrderCancelled,
}

func (t LedgerEventType) IsValid() bool { return member(ledgerEventTypes, t) }
