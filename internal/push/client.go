// Package push talks to the push notification provider's REST API: tag
// updates on a user's profile and tag-filtered broadcasts.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"onsalenow/internal/config"
	applog "onsalenow/internal/log"
)

// Filter is one provider-side targeting predicate.
type Filter struct {
	Field    string `json:"field"`
	Key      string `json:"key"`
	Relation string `json:"relation"`
	Value    string `json:"value"`
}

// TagFilter targets users whose tag key equals "true".
func TagFilter(key string) Filter {
	return Filter{Field: "tag", Key: key, Relation: "=", Value: "true"}
}

type Notification struct {
	Headings       map[string]string `json:"headings"`
	Contents       map[string]string `json:"contents"`
	Filters        []Filter          `json:"filters"`
	URL            string            `json:"url,omitempty"`
	Data           map[string]string `json:"data,omitempty"`
	BigPicture     string            `json:"big_picture,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// ErrRejected is a 2xx reply that carries errors and no notification id.
var ErrRejected = errors.New("push provider rejected the notification")

// APIError is a non-2xx provider response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("push provider: status %d: %s", e.Status, e.Body)
}

type Client struct {
	appID   string
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg config.PushConfig) *Client {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		appID:   cfg.AppID,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Enabled is false when no app id is configured; every call is then a no-op.
func (c *Client) Enabled() bool { return c.appID != "" }

// Broadcast sends one notification and returns the provider's notification id.
func (c *Client) Broadcast(ctx context.Context, n Notification) (string, error) {
	if !c.Enabled() {
		applog.L().Debug("push.disabled", zap.String("op", "broadcast"), zap.Any("filters", n.Filters))
		return "", nil
	}
	body := struct {
		AppID string `json:"app_id"`
		Notification
	}{AppID: c.appID, Notification: n}

	var resp struct {
		ID     string          `json:"id"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := c.do(ctx, http.MethodPost, "/notifications", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" && hasErrors(resp.Errors) {
		return "", fmt.Errorf("%w: %s", ErrRejected, resp.Errors)
	}
	return resp.ID, nil
}

func hasErrors(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "[]", "{}", `""`:
		return false
	}
	return true
}

// AddTags sets tags on the user's provider profile.
func (c *Client) AddTags(ctx context.Context, userID string, tags map[string]string) error {
	return c.patchTags(ctx, userID, tags)
}

// RemoveTags clears tags; the provider deletes a tag given an empty value.
func (c *Client) RemoveTags(ctx context.Context, userID string, keys ...string) error {
	tags := make(map[string]string, len(keys))
	for _, k := range keys {
		tags[k] = ""
	}
	return c.patchTags(ctx, userID, tags)
}

func (c *Client) patchTags(ctx context.Context, userID string, tags map[string]string) error {
	if !c.Enabled() {
		applog.L().Debug("push.disabled", zap.String("op", "tags"), zap.String("user_id", userID), zap.Any("tags", tags))
		return nil
	}
	if userID == "" || len(tags) == 0 {
		return nil
	}
	body := map[string]any{"properties": map[string]any{"tags": tags}}
	path := "/apps/" + url.PathEscape(c.appID) + "/users/by/external_id/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("push: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("push: decode response: %w", err)
		}
	}
	return nil
}
