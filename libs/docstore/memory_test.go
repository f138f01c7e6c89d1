package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

type testDoc struct {
	ID      string    `json:"id" bson:"_id,omitempty"`
	OwnerID string    `json:"ownerId" bson:"ownerId"`
	Status  status    `json:"status" bson:"status"`
	StartAt time.Time `json:"startAt" bson:"startAt"`
	Minutes int       `json:"minutes" bson:"minutes"`
}

func seed(t *testing.T) (*MemoryCollection[testDoc], time.Time) {
	t.Helper()
	ctx := context.Background()
	c := NewMemoryCollection[testDoc]("items")
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	docs := []testDoc{
		{OwnerID: "a", Status: "pending", StartAt: base.Add(2 * time.Hour), Minutes: 30},
		{OwnerID: "a", Status: "cancelled", StartAt: base, Minutes: 15},
		{OwnerID: "b", Status: "pending", StartAt: base.Add(time.Hour), Minutes: 60},
		{OwnerID: "a", Status: "completed", StartAt: base.Add(time.Hour), Minutes: 45},
	}
	for _, d := range docs {
		_, err := c.Create(ctx, d)
		require.NoError(t, err)
	}
	return c, base
}

func TestMemoryCollection_CreateGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[testDoc]("items")

	id, err := c.Create(ctx, testDoc{OwnerID: "a", Minutes: 30})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 30, got.Minutes)

	_, err = c.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	explicit, err := c.Create(ctx, testDoc{ID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", explicit)
	_, err = c.Create(ctx, testDoc{ID: "fixed"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryCollection_OrdersFractionalSeconds(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[testDoc]("items")
	whole := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	half := whole.Add(500 * time.Millisecond)

	_, err := c.Create(ctx, testDoc{OwnerID: "later", StartAt: half})
	require.NoError(t, err)
	_, err = c.Create(ctx, testDoc{OwnerID: "earlier", StartAt: whole})
	require.NoError(t, err)

	got, err := c.GetAll(ctx, Query{}.Order("startAt", false))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "earlier", got[0].OwnerID)
	assert.True(t, got[1].StartAt.Equal(half))

	got, err = c.GetAll(ctx, Query{}.Order("startAt", true))
	require.NoError(t, err)
	assert.Equal(t, "later", got[0].OwnerID)
}

func TestSortableTime(t *testing.T) {
	assert.Equal(t, "2026-03-02T12:00:00.000000000Z", sortableTime("2026-03-02T12:00:00Z"))
	assert.Equal(t, "2026-03-02T12:00:00.500000000Z", sortableTime("2026-03-02T14:00:00.5+02:00"))
	assert.Equal(t, "grace@example.com", sortableTime("grace@example.com"))
	assert.Equal(t, "2026-03-02", sortableTime("2026-03-02"))
	assert.Less(t, sortableTime("2026-03-02T12:00:00Z"), sortableTime("2026-03-02T12:00:00.5Z"))
}

func TestMemoryCollection_Filters(t *testing.T) {
	ctx := context.Background()
	c, base := seed(t)

	got, err := c.GetAll(ctx, Where("ownerId", OpEq, "a").Where("status", OpNe, status("cancelled")))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = c.GetAll(ctx, Where("startAt", OpGte, base.Add(time.Hour)).Where("startAt", OpLt, base.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = c.GetAll(ctx, Where("status", OpIn, []status{"completed", "cancelled"}))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = c.GetAll(ctx, Where("minutes", OpGt, 30))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryCollection_OrderAndPage(t *testing.T) {
	ctx := context.Background()
	c, base := seed(t)

	got, err := c.GetAll(ctx, Query{}.Order("startAt", false).Order("minutes", true))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.True(t, got[0].StartAt.Equal(base))
	assert.Equal(t, 60, got[1].Minutes)
	assert.Equal(t, 45, got[2].Minutes)

	page, err := c.GetAll(ctx, Query{}.Order("startAt", true).Page(2, 1))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].StartAt.Equal(base.Add(time.Hour)))

	empty, err := c.GetAll(ctx, Query{}.Page(10, 10))
	require.NoError(t, err)
	assert.Empty(t, empty)

	first, ok, err := First[testDoc](ctx, c, Where("ownerId", OpEq, "b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60, first.Minutes)
}

func TestMemoryCollection_Update(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[testDoc]("items")
	id, err := c.Create(ctx, testDoc{OwnerID: "a", Status: "pending"})
	require.NoError(t, err)

	moved := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, c.Update(ctx, id, map[string]any{"status": status("cancelled"), "startAt": moved, "id": "hijack"}))

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, status("cancelled"), got.Status)
	assert.True(t, got.StartAt.Equal(moved))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "a", got.OwnerID)

	err = c.Update(ctx, "missing", map[string]any{"status": "x"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestQueryValidate(t *testing.T) {
	assert.ErrorIs(t, Where("owner id", OpEq, "a").Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Where("ownerId", Op("like"), "a").Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Where("ownerId", OpIn, "a").Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Query{Limit: -1}.Validate(), ErrInvalidQuery)
	assert.NoError(t, Where("ownerId", OpIn, []string{"a"}).Validate())
}

func TestQueryBuilderDoesNotAlias(t *testing.T) {
	base := Where("ownerId", OpEq, "a")
	x := base.Where("status", OpEq, "pending")
	y := base.Where("status", OpEq, "cancelled")
	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "pending", x.Filters[1].Value)
	assert.Equal(t, "cancelled", y.Filters[1].Value)
}
