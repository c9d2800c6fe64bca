package helpers

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
)

// FarmerGroup is the slice of a checkout that becomes one order.
type FarmerGroup struct {
	FarmerID uuid.UUID
	Lines    []Line
	Total    decimal.Decimal
}

// GroupByFarmer partitions lines by the owning farmer of each product and
// totals them at the products' current price. Groups are sorted by farmer id.
// Every line's product must be present in products.
func GroupByFarmer(lines []Line, products map[uuid.UUID]models.Product) []FarmerGroup {
	byFarmer := make(map[uuid.UUID]*FarmerGroup)
	for _, line := range lines {
		product := products[line.ProductID]
		group, ok := byFarmer[product.FarmerID]
		if !ok {
			group = &FarmerGroup{FarmerID: product.FarmerID, Total: decimal.Zero}
			byFarmer[product.FarmerID] = group
		}
		group.Lines = append(group.Lines, line)
		group.Total = group.Total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	groups := make([]FarmerGroup, 0, len(byFarmer))
	for _, group := range byFarmer {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].FarmerID.String() < groups[j].FarmerID.String()
	})
	return groups
}
