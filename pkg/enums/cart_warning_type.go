package enums

// CartWarningType flags adjustments made while validating a cart against live stock.
type CartWarningType string

const (
	CartWarningQuantityAdjusted   CartWarningType = "quantity_adjusted"
	CartWarningProductUnavailable CartWarningType = "product_unavailable"
)

// String implements fmt.Stringer.
func (w CartWarningType) String() string {
	return string(w)
}
