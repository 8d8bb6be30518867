package recommend

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product is a recommended product. The ranking endpoints disagree on the id
// and score field names, so decoding folds them into ID and Score.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ShopID   int64           `json:"shop_id,omitempty"`
	ShopName string          `json:"shop_name,omitempty"`
	ImageURL string          `json:"image_url,omitempty"`
	Score    float64         `json:"score,omitempty"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID              int64           `json:"id"`
		ProductID       int64           `json:"product_id"`
		Name            string          `json:"name"`
		Price           decimal.Decimal `json:"price"`
		ShopID          int64           `json:"shop_id"`
		ShopName        string          `json:"shop_name"`
		ImageURL        string          `json:"image_url"`
		Score           float64         `json:"score"`
		SimilarityScore float64         `json:"similarity_score"`
		RelevanceScore  float64         `json:"relevance_score"`
		Frequency       float64         `json:"frequency"`
		CoPurchaseCount float64         `json:"co_purchase_count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Product{
		ID:       raw.ID,
		Name:     raw.Name,
		Price:    raw.Price,
		ShopID:   raw.ShopID,
		ShopName: raw.ShopName,
		ImageURL: raw.ImageURL,
	}
	if p.ID == 0 {
		p.ID = raw.ProductID
	}
	for _, score := range []float64{raw.Score, raw.SimilarityScore, raw.RelevanceScore, raw.Frequency, raw.CoPurchaseCount} {
		if score != 0 {
			p.Score = score
			break
		}
	}
	return nil
}

// Deal is a cheaper listing of a product already in the cart
type Deal struct {
	CartProductID int64           `json:"cart_product_id"`
	Name          string          `json:"name"`
	CartPrice     decimal.Decimal `json:"cart_price"`
	AltProductID  int64           `json:"alt_product_id"`
	AltPrice      decimal.Decimal `json:"alt_price"`
	ShopID        int64           `json:"shop_id"`
	ShopName      string          `json:"shop_name"`
	ImageURL      string          `json:"image_url,omitempty"`
	Savings       decimal.Decimal `json:"savings"`
}

// Shop is a ranked shop. Counts arrive as JSON numbers of either kind.
type Shop struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Address         string  `json:"address,omitempty"`
	Contact         string  `json:"contact,omitempty"`
	Logo            string  `json:"logo,omitempty"`
	OrderCount      float64 `json:"order_count"`
	ProductCount    float64 `json:"product_count,omitempty"`
	PreferenceScore float64 `json:"preference_score,omitempty"`
}
