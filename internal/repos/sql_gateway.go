package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// SQLGateway stores records as JSON documents in the sqlite records table.
type SQLGateway struct{ db *sqlx.DB }

func NewSQLGateway(db *sqlx.DB) *SQLGateway { return &SQLGateway{db: db} }

func (g *SQLGateway) Get(ctx context.Context, path string, dest any) (bool, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return false, err
	}
	var body string
	err = g.db.GetContext(ctx, &body, `SELECT body FROM records WHERE collection=? AND key=?`, collection, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("get "+path, err)
	}
	if err := json.Unmarshal([]byte(body), dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (g *SQLGateway) Set(ctx context.Context, path string, value any) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	_, err = g.db.ExecContext(ctx, `
	  INSERT INTO records(collection, key, body, updated_at)
	  VALUES(?, ?, ?, CURRENT_TIMESTAMP)
	  ON CONFLICT(collection, key) DO UPDATE SET body=excluded.body, updated_at=CURRENT_TIMESTAMP
	`, collection, key, string(body))
	if err != nil {
		return unavailable("set "+path, err)
	}
	return nil
}

// Update merges fields into the top level of the stored document.
func (g *SQLGateway) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("update "+path, err)
	}
	defer func() { _ = tx.Rollback() }()

	var body string
	err = tx.GetContext(ctx, &body, `SELECT body FROM records WHERE collection=? AND key=?`, collection, key)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return unavailable("update "+path, err)
	}

	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", path, k, err)
		}
		doc[k] = raw
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE records SET body=?, updated_at=CURRENT_TIMESTAMP WHERE collection=? AND key=?`,
		string(merged), collection, key); err != nil {
		return unavailable("update "+path, err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("update "+path, err)
	}
	return nil
}

func (g *SQLGateway) Remove(ctx context.Context, path string) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}
	if _, err := g.db.ExecContext(ctx, `DELETE FROM records WHERE collection=? AND key=?`, collection, key); err != nil {
		return unavailable("remove "+path, err)
	}
	return nil
}

func (g *SQLGateway) QueryByField(ctx context.Context, collection, field string, value any) ([]Record, error) {
	// json_extract yields 1/0 for JSON booleans
	if b, ok := value.(bool); ok {
		value = 0
		if b {
			value = 1
		}
	}
	var rows []struct {
		Key  string `db:"key"`
		Body string `db:"body"`
	}
	err := g.db.SelectContext(ctx, &rows, `
	  SELECT key, body FROM records
	  WHERE collection=? AND json_extract(body, ?) = ?
	  ORDER BY key
	`, collection, jsonPath(field), value)
	if err != nil {
		return nil, unavailable("query "+collection, err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{Key: r.Key, Body: json.RawMessage(r.Body)})
	}
	return out, nil
}

func (g *SQLGateway) List(ctx context.Context, collection string) ([]Record, error) {
	var rows []struct {
		Key  string `db:"key"`
		Body string `db:"body"`
	}
	if err := g.db.SelectContext(ctx, &rows, `SELECT key, body FROM records WHERE collection=? ORDER BY key`, collection); err != nil {
		return nil, unavailable("list "+collection, err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{Key: r.Key, Body: json.RawMessage(r.Body)})
	}
	return out, nil
}

// jsonPath builds a sqlite JSON path; plain segments stay unquoted so the
// expression indexes in ensureSchema still apply.
func jsonPath(field string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(field, ".") {
		b.WriteString(".")
		if plainSegment(seg) {
			b.WriteString(seg)
			continue
		}
		b.WriteString(`"`)
		b.WriteString(strings.ReplaceAll(seg, `"`, `\"`))
		b.WriteString(`"`)
	}
	return b.String()
}

func plainSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')) {
			return false
		}
	}
	return true
}
