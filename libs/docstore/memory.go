package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCollection keeps documents as decoded JSON maps. It is safe for concurrent use and
// serves development runs and tests.
type MemoryCollection[T any] struct {
	name string

	mu    sync.RWMutex
	docs  map[string]map[string]any
	order []string
}

var _ Collection[struct{}] = (*MemoryCollection[struct{}])(nil)

func NewMemoryCollection[T any](name string) *MemoryCollection[T] {
	return &MemoryCollection[T]{name: name, docs: map[string]map[string]any{}}
}

func (c *MemoryCollection[T]) Name() string { return c.name }

func (c *MemoryCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	c.mu.RLock()
	doc, ok := c.docs[id]
	c.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
	}
	return fromDoc[T](doc)
}

func (c *MemoryCollection[T]) GetAll(ctx context.Context, q Query) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	var matched []map[string]any
	for _, id := range c.order {
		doc := c.docs[id]
		if matchesAll(q.Filters, doc) {
			matched = append(matched, doc)
		}
	}
	c.mu.RUnlock()

	if len(q.OrderBy) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range q.OrderBy {
				cmp, ok := compare(matched[i][o.Field], matched[j][o.Field])
				if !ok || cmp == 0 {
					continue
				}
				if o.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]T, 0, len(matched))
	for _, doc := range matched {
		v, err := fromDoc[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *MemoryCollection[T]) Create(ctx context.Context, doc T) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m, err := toDoc(doc)
	if err != nil {
		return "", err
	}
	id, _ := m[IDField].(string)
	if id == "" {
		id = uuid.NewString()
	}
	m[IDField] = id

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[id]; exists {
		return "", fmt.Errorf("%s/%s: %w", c.name, id, ErrDuplicate)
	}
	c.docs[id] = m
	c.order = append(c.order, id)
	return id, nil
}

func (c *MemoryCollection[T]) Update(ctx context.Context, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := toDoc(patch)
	if err != nil {
		return err
	}
	delete(normalized, IDField)

	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
	}
	merged := make(map[string]any, len(doc)+len(normalized))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range normalized {
		merged[k] = v
	}
	c.docs[id] = merged
	return nil
}

// Len reports the number of stored documents.
func (c *MemoryCollection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func matchesAll(filters []Filter, doc map[string]any) bool {
	for _, f := range filters {
		if !matches(f, doc[f.Field]) {
			return false
		}
	}
	return true
}

func toDoc(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	for k, v := range m {
		if str, ok := v.(string); ok {
			m[k] = sortableTime(str)
		}
	}
	return m, nil
}

// sortableTimeLayout is RFC 3339 in UTC with a fixed nine-digit fraction, so stored
// timestamps order correctly as plain strings.
const sortableTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sortableTime rewrites an RFC 3339 timestamp into sortableTimeLayout and returns any other
// string unchanged.
func sortableTime(s string) string {
	if len(s) < len("2006-01-02T15:04:05Z") || s[4] != '-' || s[10] != 'T' {
		return s
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(sortableTimeLayout)
}

func fromDoc[T any](m map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(m)
	if err != nil {
		return out, fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}
