package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildSelect(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	q := Where("calendarId", OpEq, "cal-1").
		Where("status", OpNe, "cancelled").
		Where("startTime", OpGte, at).
		Where("status", OpIn, []string{"pending", "completed"}).
		Order("startTime", true).
		Page(10, 20)

	sql, args, err := buildSelect("appointments", q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT body FROM documents WHERE collection = $1"+
		" AND body->>$2::text = $3::text"+
		" AND body->>$4::text IS DISTINCT FROM $5::text"+
		" AND (body->>$6::text)::timestamptz >= $7::timestamptz"+
		" AND body->>$8::text = ANY($9::text[])"+
		" ORDER BY body->>$10::text DESC, created_at ASC, id ASC LIMIT $11 OFFSET $12", sql)
	require.Len(t, args, 12)
	assert.Equal(t, "appointments", args[0])
	assert.Equal(t, at, args[6])
	assert.Equal(t, []string{"pending", "completed"}, args[8])
}

func TestBuildSelect_RejectsBadField(t *testing.T) {
	_, _, err := buildSelect("appointments", Where("x'; drop table documents; --", OpEq, 1))
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestBuildMongoFind(t *testing.T) {
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	q := Where("id", OpEq, "x").
		Where("startTime", OpGte, from).
		Where("startTime", OpLt, to).
		Order("startTime", false).
		Page(5, 0)

	filter, opts, err := buildMongoFind(q)
	require.NoError(t, err)
	require.Len(t, filter, 2)
	assert.Equal(t, "_id", filter[0].Key)
	assert.Equal(t, bson.M{"$eq": "x"}, filter[0].Value)
	assert.Equal(t, bson.M{"$gte": from, "$lt": to}, filter[1].Value)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(5), *opts.Limit)
	assert.Equal(t, bson.D{{Key: "startTime", Value: 1}}, opts.Sort)
}
