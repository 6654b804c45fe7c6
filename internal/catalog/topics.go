package catalog

import (
	"sort"
	"strings"

	"onsalenow/internal/domain"
)

// Topic is a brand or category that buyers can subscribe to.
type Topic struct {
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Count  int    `json:"count"`
	OnSale int    `json:"onSale"`
}

// Topics groups visible products by the slug of field. The display name is
// the first spelling seen; output is ordered by name ignoring case.
func Topics(ps []domain.Product, field Field) []Topic {
	idx := map[string]int{}
	out := make([]Topic, 0)
	for _, p := range ps {
		if !Visible(p) {
			continue
		}
		name := strings.TrimSpace(field.value(p))
		slug := domain.TopicSlug(name)
		if slug == "" {
			continue
		}
		i, ok := idx[slug]
		if !ok {
			i = len(out)
			idx[slug] = i
			out = append(out, Topic{Name: name, Slug: slug})
		}
		out[i].Count++
		if IsOnSale(p) {
			out[i].OnSale++
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
