// Package notify turns a newly created product into at most one push
// broadcast per topic kind, targeted by subscription tag.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/metrics"
	"onsalenow/internal/push"
)

// productCreatedNS is the namespace of deterministic notification ids.
var productCreatedNS = uuid.NewSHA1(uuid.NameSpaceURL, []byte("onsalenow/product-created"))

// NotificationID is stable for a (product, kind) pair, so a redelivered
// trigger maps onto the same idempotency key.
func NotificationID(productID string, kind domain.TopicKind) string {
	return uuid.NewSHA1(productCreatedNS, []byte(productID+":"+string(kind))).String()
}

type SubscriberIndex interface {
	HasActiveSubscribers(ctx context.Context, kind domain.TopicKind, slug string) (bool, error)
}

type Sender interface {
	Broadcast(ctx context.Context, n push.Notification) (string, error)
}

// Deduper claims an id once. Release gives a claim back after a failed send.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

const (
	OutcomeSent          = "sent"
	OutcomeFailed        = "failed"
	OutcomeDeduped       = "deduped"
	OutcomeNoSubscribers = "no_subscribers"
	OutcomeSkipped       = "skipped"
)

type Outcome struct {
	Kind       domain.TopicKind `json:"kind"`
	Slug       string           `json:"slug"`
	Result     string           `json:"result"`
	ID         string           `json:"id,omitempty"`
	ProviderID string           `json:"providerId,omitempty"`
}

type Fanout struct {
	Subs      SubscriberIndex
	Push      Sender
	Dedup     Deduper
	PublicURL string
}

// ProductCreated notifies brand and category subscribers of p. Per-kind
// failures are logged and counted; the returned error joins them for
// callers that want to retry.
func (f *Fanout) ProductCreated(ctx context.Context, p domain.Product) ([]Outcome, error) {
	if p.IsSellerBlocked {
		for _, kind := range domain.TopicKinds {
			metrics.Notifications.WithLabelValues(string(kind), OutcomeSkipped).Inc()
		}
		return nil, nil
	}
	var (
		out  []Outcome
		errs []error
	)
	for _, kind := range domain.TopicKinds {
		o, err := f.notifyKind(ctx, p, kind)
		metrics.Notifications.WithLabelValues(string(kind), o.Result).Inc()
		out = append(out, o)
		if err != nil {
			applog.L().Warn("notify.fail",
				zap.String("product_id", p.ID), zap.String("kind", string(kind)),
				zap.String("slug", o.Slug), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		applog.L().Info("notify."+o.Result,
			zap.String("product_id", p.ID), zap.String("kind", string(kind)), zap.String("slug", o.Slug))
	}
	return out, errors.Join(errs...)
}

func (f *Fanout) notifyKind(ctx context.Context, p domain.Product, kind domain.TopicKind) (Outcome, error) {
	value := p.Brand
	if kind == domain.TopicCategory {
		value = p.Category
	}
	o := Outcome{Kind: kind, Slug: domain.TopicSlug(value), Result: OutcomeSkipped}
	if o.Slug == "" {
		return o, nil
	}

	ok, err := f.Subs.HasActiveSubscribers(ctx, kind, o.Slug)
	if err != nil {
		o.Result = OutcomeFailed
		return o, err
	}
	if !ok {
		o.Result = OutcomeNoSubscribers
		return o, nil
	}

	o.ID = NotificationID(p.ID, kind)
	claimed, err := f.Dedup.Claim(ctx, o.ID)
	if err != nil {
		o.Result = OutcomeFailed
		return o, err
	}
	if !claimed {
		o.Result = OutcomeDeduped
		return o, nil
	}

	providerID, err := f.Push.Broadcast(ctx, f.message(p, kind, value, o))
	if err != nil {
		o.Result = OutcomeFailed
		if rerr := f.Dedup.Release(ctx, o.ID); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release claim: %w", rerr))
		}
		return o, err
	}
	o.Result, o.ProviderID = OutcomeSent, providerID
	return o, nil
}

func (f *Fanout) message(p domain.Product, kind domain.TopicKind, value string, o Outcome) push.Notification {
	heading := "New from " + value
	if kind == domain.TopicCategory {
		heading = "New in " + value
	}
	body := p.Name
	if p.Price != "" {
		body += " now at " + string(p.Price)
	}
	if p.DiscountPercent != "" {
		body += " (" + string(p.DiscountPercent) + "% off)"
	}
	n := push.Notification{
		Headings:       map[string]string{"en": heading},
		Contents:       map[string]string{"en": body},
		Filters:        []push.Filter{push.TagFilter(kind.Tag(o.Slug))},
		URL:            strings.TrimRight(f.PublicURL, "/") + "/product/" + p.ID,
		Data:           map[string]string{"productId": p.ID, "kind": string(kind)},
		IdempotencyKey: o.ID,
	}
	if strings.HasPrefix(p.Image, "http://") || strings.HasPrefix(p.Image, "https://") {
		n.BigPicture = p.Image
	}
	return n
}

// Inline runs the fan-out synchronously on product creation. It is the
// dispatcher used when no message broker is configured.
type Inline struct {
	Fanout *Fanout
}

func (d Inline) ProductCreated(ctx context.Context, p domain.Product) error {
	_, err := d.Fanout.ProductCreated(ctx, p)
	return err
}
