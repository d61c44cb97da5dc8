package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"thinktank-service/internal/app"
	"thinktank-service/internal/domain"
)

// DocStore implements app.DocumentStore on Postgres: one row per
// document with the fields as JSONB, parent + seq for ordered
// collection listings.
type DocStore struct {
	pool *pgxpool.Pool
}

func NewDocStore(pool *pgxpool.Pool) *DocStore {
	return &DocStore{pool: pool}
}

func (s *DocStore) Exists(ctx context.Context, path string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM documents WHERE path=$1`, path).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("document exists: %w", err)
	}
	return true, nil
}

func (s *DocStore) Read(ctx context.Context, path string) (app.Record, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM documents WHERE path=$1`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return app.Record{}, nil
	}
	if err != nil {
		return app.Record{}, fmt.Errorf("read document: %w", err)
	}

	var fields app.Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return app.Record{}, fmt.Errorf("unmarshal document: %w", err)
	}
	return app.Record{Present: true, Fields: fields}, nil
}

func (s *DocStore) WriteMerge(ctx context.Context, path string, fields app.Fields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	parent, docID := splitPath(path)

	// JSONB || is a shallow merge, matching the create-or-merge contract.
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (path, parent, doc_id, data)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (path) DO UPDATE SET data = documents.data || EXCLUDED.data`,
		path, parent, docID, string(data))
	if err != nil {
		return fmt.Errorf("merge document: %w", err)
	}
	return nil
}

func (s *DocStore) WriteOverwrite(ctx context.Context, path string, fields app.Fields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `UPDATE documents SET data = data || $2::jsonb WHERE path=$1`, path, string(data))
	if err != nil {
		return fmt.Errorf("overwrite document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *DocStore) ListChildren(ctx context.Context, collection string) ([]app.Child, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc_id, data FROM documents WHERE parent=$1 ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []app.Child
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		var fields app.Fields
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal child %s: %w", id, err)
		}
		children = append(children, app.Child{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

func splitPath(path string) (parent, docID string) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
