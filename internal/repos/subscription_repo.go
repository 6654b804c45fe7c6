package repos

import (
	"context"
	"fmt"

	"onsalenow/internal/domain"
)

// SubscriptionRepo stores brand and category subscriptions, one collection per kind.
type SubscriptionRepo struct{ gw Gateway }

func NewSubscriptionRepo(gw Gateway) *SubscriptionRepo { return &SubscriptionRepo{gw: gw} }

// Get returns the subscription or nil when none exists.
func (r *SubscriptionRepo) Get(ctx context.Context, kind domain.TopicKind, id string) (*domain.Subscription, error) {
	var s domain.Subscription
	ok, err := r.gw.Get(ctx, Path(kind.Collection(), id), &s)
	if err != nil || !ok {
		return nil, err
	}
	if s.Kind == "" {
		s.Kind = kind
	}
	return &s, nil
}

func (r *SubscriptionRepo) Put(ctx context.Context, s domain.Subscription) error {
	return r.gw.Set(ctx, Path(s.Kind.Collection(), s.ID), s)
}

func (r *SubscriptionRepo) Update(ctx context.Context, kind domain.TopicKind, id string, fields map[string]any) error {
	return r.gw.Update(ctx, Path(kind.Collection(), id), fields)
}

func (r *SubscriptionRepo) Delete(ctx context.Context, kind domain.TopicKind, id string) error {
	return r.gw.Remove(ctx, Path(kind.Collection(), id))
}

func (r *SubscriptionRepo) ByUser(ctx context.Context, kind domain.TopicKind, userID string) ([]domain.Subscription, error) {
	return r.query(ctx, kind, "userId", userID)
}

func (r *SubscriptionRepo) BySlug(ctx context.Context, kind domain.TopicKind, slug string) ([]domain.Subscription, error) {
	return r.query(ctx, kind, "topicSlug", slug)
}

func (r *SubscriptionRepo) query(ctx context.Context, kind domain.TopicKind, field, value string) ([]domain.Subscription, error) {
	recs, err := r.gw.QueryByField(ctx, kind.Collection(), field, value)
	if err != nil {
		return nil, fmt.Errorf("%s by %s: %w", kind.Collection(), field, err)
	}
	subs, err := Decode[domain.Subscription](recs)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].Kind == "" {
			subs[i].Kind = kind
		}
	}
	return subs, nil
}
