package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/metrics"
	"onsalenow/internal/repos"
	"onsalenow/internal/validate"
)

// TagSyncer mirrors subscription state into the push provider's per-user tags.
type TagSyncer interface {
	AddTags(ctx context.Context, userID string, tags map[string]string) error
	RemoveTags(ctx context.Context, userID string, keys ...string) error
}

type SubscriptionService struct {
	Subs *repos.SubscriptionRepo
	Tags TagSyncer
	now  func() time.Time
}

func NewSubscriptionService(subs *repos.SubscriptionRepo, tags TagSyncer) *SubscriptionService {
	return &SubscriptionService{Subs: subs, Tags: tags, now: time.Now}
}

// Subscribe creates an active subscription, reactivates an inactive one, or
// does nothing if already active. The provider tag is (re)applied every time.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, topic string, kind domain.TopicKind) (*domain.Subscription, error) {
	slug, err := checkTopic(userID, topic, kind)
	if err != nil {
		return nil, err
	}
	id := domain.SubscriptionID(userID, slug)
	existing, err := s.Subs.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	var sub domain.Subscription
	switch {
	case existing == nil:
		now := s.stamp()
		sub = domain.Subscription{
			ID: id, UserID: userID, TopicName: strings.TrimSpace(topic), TopicSlug: slug,
			Kind: kind, Active: true, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.Subs.Put(ctx, sub); err != nil {
			return nil, err
		}
		metrics.SubscriptionOps.WithLabelValues("create", string(kind)).Inc()
	case !existing.Active:
		sub = *existing
		sub.Active = true
		sub.UpdatedAt = s.stamp()
		if err := s.Subs.Update(ctx, kind, id, map[string]any{"active": true, "updatedAt": sub.UpdatedAt}); err != nil {
			return nil, err
		}
		metrics.SubscriptionOps.WithLabelValues("reactivate", string(kind)).Inc()
	default:
		sub = *existing
		metrics.SubscriptionOps.WithLabelValues("noop", string(kind)).Inc()
	}
	s.addTag(ctx, userID, kind.Tag(slug))
	return &sub, nil
}

// Unsubscribe removes the record entirely.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, topic string, kind domain.TopicKind) error {
	slug, err := checkTopic(userID, topic, kind)
	if err != nil {
		return err
	}
	id := domain.SubscriptionID(userID, slug)
	existing, err := s.Subs.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("subscription %s: %w", id, repos.ErrNotFound)
	}
	if err := s.Subs.Delete(ctx, kind, id); err != nil {
		return err
	}
	metrics.SubscriptionOps.WithLabelValues("delete", string(kind)).Inc()
	s.removeTag(ctx, userID, kind.Tag(slug))
	return nil
}

// Toggle moves the subscription to !currentActive. Turning off keeps the
// record with active=false.
func (s *SubscriptionService) Toggle(ctx context.Context, userID, topic string, kind domain.TopicKind, currentActive bool) (*domain.Subscription, error) {
	slug, err := checkTopic(userID, topic, kind)
	if err != nil {
		return nil, err
	}
	target := !currentActive
	id := domain.SubscriptionID(userID, slug)
	existing, err := s.Subs.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if target {
			return s.Subscribe(ctx, userID, topic, kind)
		}
		return nil, fmt.Errorf("subscription %s: %w", id, repos.ErrNotFound)
	}

	sub := *existing
	if sub.Active != target {
		sub.Active = target
		sub.UpdatedAt = s.stamp()
		if err := s.Subs.Update(ctx, kind, id, map[string]any{"active": target, "updatedAt": sub.UpdatedAt}); err != nil {
			return nil, err
		}
	}
	if target {
		metrics.SubscriptionOps.WithLabelValues("activate", string(kind)).Inc()
		s.addTag(ctx, userID, kind.Tag(slug))
	} else {
		metrics.SubscriptionOps.WithLabelValues("deactivate", string(kind)).Inc()
		s.removeTag(ctx, userID, kind.Tag(slug))
	}
	return &sub, nil
}

// ListForUser orders active subscriptions first, then by topic name ignoring case.
func (s *SubscriptionService) ListForUser(ctx context.Context, userID string, kind domain.TopicKind) ([]domain.Subscription, error) {
	if !kind.Valid() {
		return nil, validate.Errors{"kind": "must be brand or category"}
	}
	subs, err := s.Subs.ByUser(ctx, kind, userID)
	if err != nil {
		return nil, err
	}
	SortSubscriptions(subs)
	return subs, nil
}

func SortSubscriptions(subs []domain.Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		a, b := subs[i], subs[j]
		if a.Active != b.Active {
			return a.Active
		}
		an, bn := strings.ToLower(a.TopicName), strings.ToLower(b.TopicName)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}

// PurgeUser hard-deletes every subscription of a user and clears the tags.
func (s *SubscriptionService) PurgeUser(ctx context.Context, userID string) (int, error) {
	n := 0
	for _, kind := range domain.TopicKinds {
		subs, err := s.Subs.ByUser(ctx, kind, userID)
		if err != nil {
			return n, err
		}
		var tags []string
		for _, sub := range subs {
			if err := s.Subs.Delete(ctx, kind, sub.ID); err != nil {
				return n, err
			}
			n++
			tags = append(tags, kind.Tag(sub.TopicSlug))
		}
		if len(tags) > 0 {
			s.removeTag(ctx, userID, tags...)
		}
		metrics.SubscriptionOps.WithLabelValues("purge", string(kind)).Add(float64(len(subs)))
	}
	return n, nil
}

// HasActiveSubscribers reports whether any active subscription targets slug.
func (s *SubscriptionService) HasActiveSubscribers(ctx context.Context, kind domain.TopicKind, slug string) (bool, error) {
	subs, err := s.Subs.BySlug(ctx, kind, slug)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.Active {
			return true, nil
		}
	}
	return false, nil
}

func (s *SubscriptionService) addTag(ctx context.Context, userID, tag string) {
	if s.Tags == nil {
		return
	}
	err := s.Tags.AddTags(ctx, userID, map[string]string{tag: "true"})
	tagOutcome("add", userID, []string{tag}, err)
}

func (s *SubscriptionService) removeTag(ctx context.Context, userID string, tags ...string) {
	if s.Tags == nil {
		return
	}
	err := s.Tags.RemoveTags(ctx, userID, tags...)
	tagOutcome("remove", userID, tags, err)
}

// Tag sync failures never fail the subscription write.
func tagOutcome(op, userID string, tags []string, err error) {
	if err != nil {
		metrics.TagSync.WithLabelValues(op, "failed").Inc()
		applog.L().Warn("subscription.tag_sync.fail",
			zap.String("op", op), zap.String("user_id", userID), zap.Strings("tags", tags), zap.Error(err))
		return
	}
	metrics.TagSync.WithLabelValues(op, "ok").Inc()
}

func checkTopic(userID, topic string, kind domain.TopicKind) (string, error) {
	ve := validate.Errors{}
	if userID == "" {
		ve.Add("userId", "required")
	}
	if !kind.Valid() {
		ve.Add("kind", "must be brand or category")
	}
	slug := domain.TopicSlug(topic)
	if slug == "" {
		ve.Add("topic", "must contain letters or digits")
	} else if len(topic) > 100 {
		ve.Add("topic", "at most 100 characters")
	}
	if err := ve.Err(); err != nil {
		return "", err
	}
	return slug, nil
}

func (s *SubscriptionService) stamp() string { return s.now().UTC().Format(time.RFC3339) }
