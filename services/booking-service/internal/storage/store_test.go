package storage

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/apptbook/libs/docstore"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())
	require.NoError(t, s.ReadyCheck(ctx))

	id, err := s.Calendars.Create(ctx, model.Calendar{OwnerType: model.OwnerMember, OwnerID: "m1", BufferTime: 5})
	require.NoError(t, err)
	cal, found, err := docstore.First(ctx, s.Calendars, docstore.Where("ownerId", docstore.OpEq, "m1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, cal.ID)
	require.NoError(t, s.Close(ctx))
}

func TestOpenRejectsMisconfiguration(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, Config{Driver: "sqlite"})
	assert.Error(t, err)
	_, err = Open(ctx, Config{Driver: DriverMongo})
	assert.ErrorContains(t, err, "MONGO_URI")
	_, err = Open(ctx, Config{Driver: DriverPostgres})
	assert.ErrorContains(t, err, "DATABASE_URL")
}
