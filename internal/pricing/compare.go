// Package pricing compares a cart line against same-named products sold by
// other shops.
package pricing

import (
	"sort"

	"market-service/internal/models"

	"github.com/shopspring/decimal"
)

// Alternative is a candidate product for a cart line at another
// (product, shop) pair.
type Alternative struct {
	ProductID int64           `json:"id"`
	ShopID    int64           `json:"shop_id"`
	ShopName  string          `json:"shop_name"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
}

// Comparison is the price comparison of one cart line.
type Comparison struct {
	Alternatives        []Alternative   `json:"alternatives"`
	CheapestAlternative *Alternative    `json:"cheapest_alternative"`
	PotentialSavings    decimal.Decimal `json:"potential_savings"`
}

// Empty is the comparison used when a line's lookup failed.
func Empty() Comparison {
	return Comparison{Alternatives: []Alternative{}, PotentialSavings: decimal.Zero}
}

// Compare builds the comparison for line from candidates, the rows matching
// the line's product name. The line's own (product, shop) pair is excluded;
// the rest is ordered by ascending price. Savings are non-zero only when the
// cheapest alternative is strictly cheaper than the line.
func Compare(line models.CartLine, candidates []models.Product) Comparison {
	alts := make([]Alternative, 0, len(candidates))
	for _, p := range candidates {
		if p.ID == line.ProductID && p.ShopID == line.ShopID {
			continue
		}
		alts = append(alts, Alternative{
			ProductID: p.ID,
			ShopID:    p.ShopID,
			ShopName:  p.ShopName,
			Name:      p.Name,
			Price:     p.Price,
		})
	}

	sort.SliceStable(alts, func(i, j int) bool {
		if c := alts[i].Price.Cmp(alts[j].Price); c != 0 {
			return c < 0
		}
		if alts[i].ShopID != alts[j].ShopID {
			return alts[i].ShopID < alts[j].ShopID
		}
		return alts[i].ProductID < alts[j].ProductID
	})

	cmp := Comparison{Alternatives: alts, PotentialSavings: decimal.Zero}
	if len(alts) == 0 {
		return cmp
	}

	cheapest := alts[0]
	cmp.CheapestAlternative = &cheapest
	if cheapest.Price.LessThan(line.Price) {
		cmp.PotentialSavings = line.Price.Sub(cheapest.Price).Mul(decimal.NewFromInt(int64(line.Quantity)))
	}
	return cmp
}

// PricedLine is a cart line with its comparison.
type PricedLine struct {
	models.CartLine
	Subtotal decimal.Decimal `json:"subtotal"`
	Comparison
}

// Summary aggregates a priced cart.
type Summary struct {
	Lines                 []PricedLine    `json:"items"`
	Total                 decimal.Decimal `json:"cart_total"`
	TotalPotentialSavings decimal.Decimal `json:"total_potential_savings"`
}

// Summarize pairs lines with their comparisons (same index) and totals them.
func Summarize(lines []models.CartLine, comparisons []Comparison) Summary {
	s := Summary{
		Lines:                 make([]PricedLine, 0, len(lines)),
		Total:                 decimal.Zero,
		TotalPotentialSavings: decimal.Zero,
	}
	for i, line := range lines {
		cmp := Empty()
		if i < len(comparisons) {
			cmp = comparisons[i]
		}
		sub := line.Subtotal()
		s.Lines = append(s.Lines, PricedLine{CartLine: line, Subtotal: sub, Comparison: cmp})
		s.Total = s.Total.Add(sub)
		s.TotalPotentialSavings = s.TotalPotentialSavings.Add(cmp.PotentialSavings)
	}
	return s
}
