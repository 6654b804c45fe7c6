package domain

import (
	"bytes"
	"encoding/json"
)

// Amount is a price or percentage as entered by a seller. Stored records carry
// it either as a JSON string ("₹2,499") or as a bare number.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*a = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		*a = Amount(b)
	}
	return nil
}

type Product struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Brand           string   `json:"brand"`
	Category        string   `json:"category"`
	Price           Amount   `json:"price"`
	OriginalPrice   Amount   `json:"originalPrice,omitempty"`
	DiscountPercent Amount   `json:"discountPercent,omitempty"`
	Stock           int      `json:"stock"`
	Sold            int      `json:"sold"`
	SellerID        string   `json:"sellerId"`
	Website         string   `json:"website"`
	Sizes           []string `json:"sizes,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Image           string   `json:"image,omitempty"`
	IsSellerBlocked bool     `json:"isSellerBlocked"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
}
