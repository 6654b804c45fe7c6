package catalog

import (
	"strings"

	"onsalenow/internal/domain"
)

type Filters struct {
	PriceRange PriceRange
	Sizes      []string
	Categories []string
}

// Search returns the visible, on-sale products matching the term and every
// filter. An empty term or empty filter matches everything. Input order is kept.
func Search(ps []domain.Product, term string, f Filters) []domain.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	sizes := lowerSet(f.Sizes, strings.ToLower)
	cats := lowerSet(f.Categories, MatchKey)

	out := make([]domain.Product, 0)
	for _, p := range ps {
		if !Visible(p) || !IsOnSale(p) {
			continue
		}
		if !matchesTerm(p, term) {
			continue
		}
		if !f.PriceRange.Contains(ParsePrice(string(p.Price))) {
			continue
		}
		if len(sizes) > 0 && !hasAnySize(p.Sizes, sizes) {
			continue
		}
		if len(cats) > 0 && !cats[MatchKey(p.Category)] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesTerm(p domain.Product, term string) bool {
	if term == "" {
		return true
	}
	for _, v := range []string{p.Name, p.Description, p.Brand, p.Category} {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	for _, k := range p.Keywords {
		if strings.Contains(strings.ToLower(k), term) {
			return true
		}
	}
	return false
}

func hasAnySize(have []string, want map[string]bool) bool {
	for _, s := range have {
		if want[strings.ToLower(strings.TrimSpace(s))] {
			return true
		}
	}
	return false
}

func lowerSet(vals []string, norm func(string) string) map[string]bool {
	set := map[string]bool{}
	for _, v := range vals {
		if k := norm(strings.TrimSpace(v)); k != "" {
			set[k] = true
		}
	}
	return set
}
