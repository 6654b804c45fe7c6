package domain

import (
	"strings"
	"unicode"
)

type TopicKind string

const (
	TopicBrand    TopicKind = "brand"
	TopicCategory TopicKind = "category"
)

var TopicKinds = []TopicKind{TopicBrand, TopicCategory}

func (k TopicKind) Valid() bool { return k == TopicBrand || k == TopicCategory }

// Collection is the record store collection holding subscriptions of this kind.
func (k TopicKind) Collection() string { return string(k) + "Subscriptions" }

// Tag is the push provider tag key mirrored for an active subscription.
func (k TopicKind) Tag(slug string) string { return string(k) + "_" + slug }

type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TopicName string    `json:"topicName"`
	TopicSlug string    `json:"topicSlug"`
	Kind      TopicKind `json:"kind"`
	Active    bool      `json:"active"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
}

func SubscriptionID(userID, slug string) string { return userID + "_" + slug }

// TopicSlug normalizes a brand or category name into the key used for
// subscription ids and push tags. The output alphabet is lower-case letters,
// digits and '_': runs of whitespace or '_' become one '_', every other
// character is dropped, and leading or trailing '_' are trimmed.
func TopicSlug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}
