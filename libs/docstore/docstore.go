// Package docstore is a small document-repository abstraction: every entity lives in a named
// collection and is reached through Get, GetAll, Create and Update. Backends are in-memory,
// MongoDB and PostgreSQL (JSONB).
//
// Documents are Go structs. Field names in queries and patches are the struct's JSON names,
// which must match its BSON names; the "id" field is the document id.
package docstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("docstore: document not found")
	ErrInvalidQuery = errors.New("docstore: invalid query")
	// ErrDuplicate is returned by Create when the document id is already taken.
	ErrDuplicate    = errors.New("docstore: duplicate id")
)

// IDField is the JSON name of the document id in every collection.
const IDField = "id"

// Collection is the generic repository every backend implements.
type Collection[T any] interface {
	Name() string
	// Get returns ErrNotFound when no document has the id.
	Get(ctx context.Context, id string) (T, error)
	GetAll(ctx context.Context, q Query) ([]T, error)
	// Create stores doc under a generated id, or under doc's own id when it is set.
	Create(ctx context.Context, doc T) (string, error)
	// Update merges patch into the stored document. The id cannot be patched.
	Update(ctx context.Context, id string, patch map[string]any) error
}

// First runs q with limit 1 and reports whether a document matched.
func First[T any](ctx context.Context, c Collection[T], q Query) (T, bool, error) {
	var zero T
	q.Limit = 1
	docs, err := c.GetAll(ctx, q)
	if err != nil {
		return zero, false, err
	}
	if len(docs) == 0 {
		return zero, false, nil
	}
	return docs[0], true, nil
}
