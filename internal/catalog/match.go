package catalog

import (
	"sort"
	"strings"
	"unicode"

	"onsalenow/internal/domain"
)

// Visible is the one predicate deciding whether a product may be listed publicly.
func Visible(p domain.Product) bool { return !p.IsSellerBlocked }

// FilterVisible drops seller-blocked products and keeps the order of the rest.
func FilterVisible(ps []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(ps))
	for _, p := range ps {
		if Visible(p) {
			out = append(out, p)
		}
	}
	return out
}

func FilterOnSale(ps []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(ps))
	for _, p := range ps {
		if IsOnSale(p) {
			out = append(out, p)
		}
	}
	return out
}

// MatchKey lowercases s and strips everything but letters and digits.
func MatchKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type Field string

const (
	FieldWebsite  Field = "website"
	FieldBrand    Field = "brand"
	FieldCategory Field = "category"
)

func (f Field) value(p domain.Product) string {
	switch f {
	case FieldWebsite:
		return p.Website
	case FieldBrand:
		return p.Brand
	case FieldCategory:
		return p.Category
	}
	return ""
}

type Tier string

const (
	TierExact   Tier = "exact"
	TierPartial Tier = "partial"
	TierLoose   Tier = "loose"
)

// StrategyNone is reported when no tier matched.
const StrategyNone = "none"

type Result struct {
	Products []domain.Product `json:"products"`
	Strategy string           `json:"strategy"`
}

// looseLen is how many leading characters of the query the loose tier keeps.
const looseLen = 4

// Match tries the tiers exact, partial (when allowPartial) and loose in that
// order, and within a tier each field in order. The first non-empty match
// wins; its products are sorted by id and the strategy is "{field}-{tier}".
func Match(ps []domain.Product, query string, fields []Field, allowPartial bool) Result {
	q := MatchKey(query)
	if q == "" {
		return Result{Products: []domain.Product{}, Strategy: StrategyNone}
	}
	tiers := []Tier{TierExact}
	if allowPartial {
		tiers = append(tiers, TierPartial)
	}
	qr := []rune(q)
	if len(qr) >= looseLen {
		tiers = append(tiers, TierLoose)
	}

	for _, tier := range tiers {
		for _, f := range fields {
			var hits []domain.Product
			for _, p := range ps {
				if matches(tier, MatchKey(f.value(p)), q, qr) {
					hits = append(hits, p)
				}
			}
			if len(hits) > 0 {
				sort.SliceStable(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
				return Result{Products: hits, Strategy: string(f) + "-" + string(tier)}
			}
		}
	}
	return Result{Products: []domain.Product{}, Strategy: StrategyNone}
}

// MatchBrand is Match over a single field.
func MatchBrand(ps []domain.Product, query string, field Field, allowPartial bool) Result {
	return Match(ps, query, []Field{field}, allowPartial)
}

func matches(tier Tier, v, q string, qr []rune) bool {
	if v == "" {
		return false
	}
	switch tier {
	case TierExact:
		return v == q
	case TierPartial:
		return strings.Contains(v, q) || strings.Contains(q, v)
	case TierLoose:
		return strings.Contains(v, string(qr[:looseLen]))
	}
	return false
}
