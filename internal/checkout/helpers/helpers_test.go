package helpers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/farmconnect-backend/pkg/db/models"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
)

func TestNormalizeLinesSumsDuplicates(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	lines, err := NormalizeLines([]Line{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 1},
		{ProductID: a, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	got := map[uuid.UUID]int{}
	for _, line := range lines {
		got[line.ProductID] = line.Quantity
	}
	if got[a] != 5 || got[b] != 1 {
		t.Fatalf("unexpected quantities: %+v", got)
	}
	if lines[0].ProductID.String() > lines[1].ProductID.String() {
		t.Fatalf("lines not sorted by product id")
	}
}

func TestNormalizeLinesValidation(t *testing.T) {
	cases := map[string][]Line{
		"empty":         nil,
		"zero quantity": {{ProductID: uuid.New(), Quantity: 0}},
		"negative":      {{ProductID: uuid.New(), Quantity: -1}},
		"missing id":    {{Quantity: 1}},
		"too large":     {{ProductID: uuid.New(), Quantity: MaxLineQuantity + 1}},
	}
	for name, lines := range cases {
		_, err := NormalizeLines(lines)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
}

func TestGroupByFarmer(t *testing.T) {
	farmerA, farmerB := uuid.New(), uuid.New()
	p1 := models.Product{ID: uuid.New(), FarmerID: farmerA, Price: decimal.RequireFromString("1.50")}
	p2 := models.Product{ID: uuid.New(), FarmerID: farmerA, Price: decimal.RequireFromString("2.00")}
	p3 := models.Product{ID: uuid.New(), FarmerID: farmerB, Price: decimal.RequireFromString("0.99")}
	products := map[uuid.UUID]models.Product{p1.ID: p1, p2.ID: p2, p3.ID: p3}

	groups := GroupByFarmer([]Line{
		{ProductID: p1.ID, Quantity: 2},
		{ProductID: p2.ID, Quantity: 1},
		{ProductID: p3.ID, Quantity: 3},
	}, products)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	totals := map[uuid.UUID]string{}
	for _, g := range groups {
		totals[g.FarmerID] = g.Total.StringFixed(2)
	}
	if totals[farmerA] != "5.00" {
		t.Fatalf("unexpected total for farmer a: %s", totals[farmerA])
	}
	if totals[farmerB] != "2.97" {
		t.Fatalf("unexpected total for farmer b: %s", totals[farmerB])
	}
	if groups[0].FarmerID.String() > groups[1].FarmerID.String() {
		t.Fatalf("groups not sorted by farmer id")
	}
}
