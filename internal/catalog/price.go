package catalog

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"onsalenow/internal/domain"
)

// ParsePrice keeps only digits and dots before parsing. Anything that still
// fails to parse is 0.
func ParsePrice(s string) float64 {
	clean := strings.Map(func(r rune) rune {
		if ('0' <= r && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	if clean == "" {
		return 0
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParsePercent reads a signed percentage such as "25", "-10" or "12.5%".
// Anything unparsable is 0.
func ParsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// IsOnSale: a positive discount, or an original price above a positive price.
func IsOnSale(p domain.Product) bool {
	if ParsePercent(string(p.DiscountPercent)) > 0 {
		return true
	}
	price := ParsePrice(string(p.Price))
	return price > 0 && ParsePrice(string(p.OriginalPrice)) > price
}

// ComputeDiscountPercent derives the discount from the two prices when they
// allow it, else falls back to the explicit percentage.
func ComputeDiscountPercent(original, current, explicit float64) int {
	if original > 0 && current > 0 && original > current {
		return int(math.Round((original - current) / original * 100))
	}
	if explicit > 0 {
		return int(math.Round(explicit))
	}
	return 0
}

var ErrUnknownPriceRange = errors.New("unknown price range")

// PriceRange is one of the fixed search buckets. The zero value matches any price.
type PriceRange struct {
	Name     string
	Min, Max float64
	// MinOpen excludes Min itself; Max <= 0 means unbounded.
	MinOpen bool
	MaxOpen bool
}

var priceRanges = []PriceRange{
	{Name: "under-2000", Min: 0, Max: 2000, MaxOpen: true},
	{Name: "2000-4000", Min: 2000, Max: 4000},
	{Name: "4000-6000", Min: 4000, Max: 6000},
	{Name: "6000-10000", Min: 6000, Max: 10000},
	{Name: "above-10000", Min: 10000, MinOpen: true},
}

// PriceRangeNames lists the accepted bucket names in ascending order.
func PriceRangeNames() []string {
	out := make([]string, len(priceRanges))
	for i, r := range priceRanges {
		out[i] = r.Name
	}
	return out
}

func ParsePriceRange(s string) (PriceRange, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return PriceRange{}, nil
	}
	for _, r := range priceRanges {
		if r.Name == s {
			return r, nil
		}
	}
	return PriceRange{}, ErrUnknownPriceRange
}

func (r PriceRange) Any() bool { return r.Name == "" }

func (r PriceRange) Contains(price float64) bool {
	if r.Any() {
		return true
	}
	if price < r.Min || (r.MinOpen && price == r.Min) {
		return false
	}
	if r.Max > 0 && (price > r.Max || (r.MaxOpen && price == r.Max)) {
		return false
	}
	return true
}
