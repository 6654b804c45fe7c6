package handlers

import (
	"github.com/gofiber/fiber/v2"

	"onsalenow/internal/domain"
	"onsalenow/internal/log"
	"onsalenow/internal/services"
)

type SubscriptionHandler struct {
	Subs *services.SubscriptionService
}

type topicBody struct {
	Topic  string           `json:"topic"`
	Kind   domain.TopicKind `json:"kind"`
	Active bool             `json:"active"`
}

// GET /api/v1/subscriptions?kind=brand
func (h *SubscriptionHandler) List(c *fiber.Ctx) error {
	kind := domain.TopicKind(c.Query("kind", string(domain.TopicBrand)))
	subs, err := h.Subs.ListForUser(c.UserContext(), sessionOf(c).UID, kind)
	if err != nil {
		return respondErr(c, "subscriptions.list", err)
	}
	return c.JSON(fiber.Map{"kind": kind, "subscriptions": subs, "count": len(subs)})
}

// POST /api/v1/subscriptions
func (h *SubscriptionHandler) Subscribe(c *fiber.Ctx) error {
	var in topicBody
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	sub, err := h.Subs.Subscribe(c.UserContext(), sessionOf(c).UID, in.Topic, in.Kind)
	if err != nil {
		return respondErr(c, "subscriptions.subscribe", err)
	}
	log.Audit(c, "subscriptions.subscribe", map[string]any{"topic_kind": string(sub.Kind), "topic": sub.TopicSlug})
	return c.JSON(sub)
}

// POST /api/v1/subscriptions/toggle; body.active is the state the caller sees now.
func (h *SubscriptionHandler) Toggle(c *fiber.Ctx) error {
	var in topicBody
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	sub, err := h.Subs.Toggle(c.UserContext(), sessionOf(c).UID, in.Topic, in.Kind, in.Active)
	if err != nil {
		return respondErr(c, "subscriptions.toggle", err)
	}
	log.Audit(c, "subscriptions.toggle", map[string]any{"topic_kind": string(sub.Kind), "topic": sub.TopicSlug, "active": sub.Active})
	return c.JSON(sub)
}

// DELETE /api/v1/subscriptions/:kind/:topic
func (h *SubscriptionHandler) Unsubscribe(c *fiber.Ctx) error {
	kind := domain.TopicKind(c.Params("kind"))
	topic := c.Params("topic")
	if err := h.Subs.Unsubscribe(c.UserContext(), sessionOf(c).UID, topic, kind); err != nil {
		return respondErr(c, "subscriptions.unsubscribe", err)
	}
	c.Status(fiber.StatusNoContent)
	log.Audit(c, "subscriptions.unsubscribe", map[string]any{"topic_kind": string(kind), "topic": topic})
	return c.SendStatus(fiber.StatusNoContent)
}

// DELETE /api/v1/admin/users/:uid/subscriptions
func (h *SubscriptionHandler) Purge(c *fiber.Ctx) error {
	uid := c.Params("uid")
	n, err := h.Subs.PurgeUser(c.UserContext(), uid)
	if err != nil {
		return respondErr(c, "admin.subscriptions.purge", err)
	}
	log.Audit(c, "admin.subscriptions.purge", map[string]any{"target": uid, "removed": n})
	return c.JSON(fiber.Map{"removed": n})
}
