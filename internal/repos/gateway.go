package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("record store unavailable")
)

// Record is one stored document: its key inside the collection and its JSON body.
type Record struct {
	Key  string
	Body json.RawMessage
}

// Gateway is the hierarchical record store. Paths are "collection/key".
// A missing path is an empty result for Get and a no-op for Remove; Update
// on a missing path fails with ErrNotFound. Backend failures wrap ErrUnavailable.
type Gateway interface {
	Get(ctx context.Context, path string, dest any) (bool, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
	// QueryByField returns the records whose field equals value, ordered by key.
	// field may be dotted ("sellerIds.u1") to test set membership.
	QueryByField(ctx context.Context, collection, field string, value any) ([]Record, error)
	List(ctx context.Context, collection string) ([]Record, error)
}

func Path(collection, key string) string { return collection + "/" + key }

func splitPath(path string) (string, string, error) {
	collection, key, ok := strings.Cut(path, "/")
	if !ok || collection == "" || key == "" || strings.Contains(key, "/") {
		return "", "", fmt.Errorf("invalid record path %q", path)
	}
	return collection, key, nil
}

// EmailKey turns an e-mail into a record key (dots are not allowed in keys).
func EmailKey(email string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(email)), ".", ",")
}

// Decode unmarshals every record body into T, keeping the record order.
func Decode[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		var v T
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
