package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/apptbook/libs/db"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection text NOT NULL,
	id text NOT NULL,
	body jsonb NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

const uniqueViolation = "23505"

// EnsureSchema creates the shared documents table used by every PostgresCollection.
func EnsureSchema(ctx context.Context, pool *db.Pool) error {
	_, err := pool.Exec(ctx, documentsSchema)
	return err
}

// PostgresCollection stores each document as a JSONB row in the documents table.
type PostgresCollection[T any] struct {
	pool *db.Pool
	name string
}

var _ Collection[struct{}] = (*PostgresCollection[struct{}])(nil)

func NewPostgresCollection[T any](pool *db.Pool, name string) *PostgresCollection[T] {
	return &PostgresCollection[T]{pool: pool, name: name}
}

func (c *PostgresCollection[T]) Name() string { return c.name }

func (c *PostgresCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	var body []byte
	err := c.pool.QueryRow(ctx, `
		SELECT body
		FROM documents
		WHERE collection = $1 AND id = $2
	`, c.name, id).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
		}
		return zero, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func (c *PostgresCollection[T]) GetAll(ctx context.Context, q Query) ([]T, error) {
	sql, args, err := buildSelect(c.name, q)
	if err != nil {
		return nil, err
	}
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (c *PostgresCollection[T]) Create(ctx context.Context, doc T) (string, error) {
	m, err := toDoc(doc)
	if err != nil {
		return "", err
	}
	id, _ := m[IDField].(string)
	if id == "" {
		id = uuid.NewString()
	}
	m[IDField] = id
	body, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	_, err = c.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, body)
		VALUES ($1, $2, $3::jsonb)
	`, c.name, id, string(body))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("%s/%s: %w", c.name, id, ErrDuplicate)
		}
		return "", err
	}
	return id, nil
}

func (c *PostgresCollection[T]) Update(ctx context.Context, id string, patch map[string]any) error {
	m, err := toDoc(patch)
	if err != nil {
		return err
	}
	delete(m, IDField)
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tag, err := c.pool.Exec(ctx, `
		UPDATE documents
		SET body = body || $3::jsonb,
			updated_at = now()
		WHERE collection = $1 AND id = $2
	`, c.name, id, string(body))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
	}
	return nil
}

// buildSelect renders q against the documents table. Field names are bound as parameters,
// never interpolated.
func buildSelect(collection string, q Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	args := []any{collection}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var sb strings.Builder
	sb.WriteString("SELECT body FROM documents WHERE collection = $1")
	for _, f := range q.Filters {
		field := arg(f.Field) + "::text"
		sb.WriteString(" AND ")
		sb.WriteString(filterSQL(field, f, arg))
	}

	sb.WriteString(" ORDER BY ")
	for _, o := range q.OrderBy {
		sb.WriteString("body->>")
		sb.WriteString(arg(o.Field) + "::text")
		if o.Desc {
			sb.WriteString(" DESC, ")
		} else {
			sb.WriteString(" ASC, ")
		}
	}
	sb.WriteString("created_at ASC, id ASC")

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(arg(q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(arg(q.Offset))
	}
	return sb.String(), args, nil
}

func filterSQL(field string, f Filter, arg func(any) string) string {
	if f.Op == OpIn {
		values, _ := sliceValues(f.Value)
		texts := make([]string, 0, len(values))
		for _, v := range values {
			texts = append(texts, textValue(v))
		}
		return fmt.Sprintf("body->>%s = ANY(%s::text[])", field, arg(texts))
	}

	v := normalize(f.Value)
	if v == nil {
		if f.Op == OpNe {
			return fmt.Sprintf("body->>%s IS NOT NULL", field)
		}
		return fmt.Sprintf("body->>%s IS NULL", field)
	}

	op := string(f.Op)
	switch f.Op {
	case OpEq:
		op = "="
	case OpNe:
		op = "IS DISTINCT FROM"
	}

	switch val := v.(type) {
	case time.Time:
		return fmt.Sprintf("(body->>%s)::timestamptz %s %s::timestamptz", field, op, arg(val))
	case float64:
		return fmt.Sprintf("(body->>%s)::float8 %s %s::float8", field, op, arg(val))
	case bool:
		return fmt.Sprintf("(body->>%s)::boolean %s %s::boolean", field, op, arg(val))
	default:
		return fmt.Sprintf("body->>%s %s %s::text", field, op, arg(textValue(val)))
	}
}

func textValue(v any) string {
	switch val := normalize(v).(type) {
	case time.Time:
		return val.Format(sortableTimeLayout)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
