package pricing

import (
	"testing"

	"market-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestCompareFindsCheapestAlternative(t *testing.T) {
	line := models.CartLine{ProductID: 10, ShopID: 1, Quantity: 2, Price: price(3500), ProductName: "Brake Pads"}
	candidates := []models.Product{
		{ID: 10, ShopID: 1, Name: "Brake Pads", Price: price(3500)},
		{ID: 40, ShopID: 4, Name: "Brake Pads", Price: price(3800), ShopName: "Detailing Experts"},
		{ID: 20, ShopID: 2, Name: "Brake Pads", Price: price(3200), ShopName: "Mechanic Shop Pro"},
	}

	cmp := Compare(line, candidates)

	require.Len(t, cmp.Alternatives, 2)
	require.NotNil(t, cmp.CheapestAlternative)
	assert.Equal(t, int64(2), cmp.CheapestAlternative.ShopID)
	assert.True(t, cmp.CheapestAlternative.Price.Equal(price(3200)))
	assert.True(t, cmp.PotentialSavings.Equal(price(600)), "got %s", cmp.PotentialSavings)
	assert.Equal(t, int64(4), cmp.Alternatives[1].ShopID)
}

func TestCompareNoCheaperAlternative(t *testing.T) {
	line := models.CartLine{ProductID: 1, ShopID: 1, Quantity: 3, Price: price(100)}
	candidates := []models.Product{
		{ID: 2, ShopID: 2, Price: price(100)},
		{ID: 3, ShopID: 3, Price: price(150)},
	}

	cmp := Compare(line, candidates)

	require.NotNil(t, cmp.CheapestAlternative)
	assert.True(t, cmp.PotentialSavings.IsZero(), "equal price must not count as savings")
}

func TestCompareExcludesOnlyOwnPair(t *testing.T) {
	line := models.CartLine{ProductID: 5, ShopID: 1, Quantity: 1, Price: price(50)}
	candidates := []models.Product{
		{ID: 5, ShopID: 1, Price: price(50)},
		// same shop, different product with a matching name
		{ID: 6, ShopID: 1, Price: price(45)},
	}

	cmp := Compare(line, candidates)

	require.Len(t, cmp.Alternatives, 1)
	assert.Equal(t, int64(6), cmp.Alternatives[0].ProductID)
	assert.True(t, cmp.PotentialSavings.Equal(price(5)))
}

func TestCompareWithoutCandidates(t *testing.T) {
	line := models.CartLine{ProductID: 1, ShopID: 1, Quantity: 1, Price: price(10)}

	cmp := Compare(line, []models.Product{{ID: 1, ShopID: 1, Price: price(10)}})

	assert.Empty(t, cmp.Alternatives)
	assert.Nil(t, cmp.CheapestAlternative)
	assert.True(t, cmp.PotentialSavings.IsZero())
}

func TestCompareTiesOrderedByShop(t *testing.T) {
	line := models.CartLine{ProductID: 1, ShopID: 1, Quantity: 1, Price: price(90)}
	candidates := []models.Product{
		{ID: 9, ShopID: 3, Price: price(80)},
		{ID: 8, ShopID: 2, Price: price(80)},
	}

	cmp := Compare(line, candidates)

	require.NotNil(t, cmp.CheapestAlternative)
	assert.Equal(t, int64(2), cmp.CheapestAlternative.ShopID)
}

func TestSavingsNeverNegative(t *testing.T) {
	prices := []int64{1, 50, 99, 100, 101, 500}
	for _, own := range prices {
		for _, other := range prices {
			line := models.CartLine{ProductID: 1, ShopID: 1, Quantity: 4, Price: price(own)}
			cmp := Compare(line, []models.Product{{ID: 2, ShopID: 2, Price: price(other)}})

			assert.False(t, cmp.PotentialSavings.IsNegative())
			if other < own {
				assert.True(t, cmp.PotentialSavings.Equal(price((own-other)*4)))
			} else {
				assert.True(t, cmp.PotentialSavings.IsZero())
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	lines := []models.CartLine{
		{ID: 1, ProductID: 10, ShopID: 1, Quantity: 2, Price: price(3500)},
		{ID: 2, ProductID: 11, ShopID: 1, Quantity: 1, Price: decimal.RequireFromString("12.50")},
	}
	comparisons := []Comparison{
		Compare(lines[0], []models.Product{{ID: 20, ShopID: 2, Price: price(3200)}}),
		Empty(),
	}

	s := Summarize(lines, comparisons)

	require.Len(t, s.Lines, 2)
	assert.True(t, s.Total.Equal(decimal.RequireFromString("7012.50")), "got %s", s.Total)
	assert.True(t, s.TotalPotentialSavings.Equal(price(600)))
	assert.True(t, s.Lines[1].Subtotal.Equal(decimal.RequireFromString("12.50")))
}

func TestSummarizeMissingComparisonDegrades(t *testing.T) {
	lines := []models.CartLine{{ID: 1, Quantity: 1, Price: price(10)}}

	s := Summarize(lines, nil)

	require.Len(t, s.Lines, 1)
	assert.Empty(t, s.Lines[0].Alternatives)
	assert.True(t, s.TotalPotentialSavings.IsZero())
}
