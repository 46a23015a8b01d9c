package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/metervend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReadingService(t *testing.T) (*service.ReadingService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return service.NewReadingService(client), mr
}

func TestReadingRoundTrip(t *testing.T) {
	svc, mr := newReadingService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetLatest(ctx, "11111111", "377", "123"))

	units, err := svc.GetLatest(ctx, "11111111")
	require.NoError(t, err)
	assert.Equal(t, "377", units)

	used := mr.HGet("reading:11111111", "used_units")
	assert.Equal(t, "123", used)
}

func TestReadingColdCache(t *testing.T) {
	svc, _ := newReadingService(t)

	_, err := svc.GetLatest(context.Background(), "11111111")
	assert.ErrorIs(t, err, service.ErrNoReading)
}

func TestReadingExpires(t *testing.T) {
	svc, mr := newReadingService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetLatest(ctx, "11111111", "377", "123"))
	mr.FastForward(3 * time.Minute)

	_, err := svc.GetLatest(ctx, "11111111")
	assert.ErrorIs(t, err, service.ErrNoReading)
}

func TestReadingOverwrite(t *testing.T) {
	svc, _ := newReadingService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetLatest(ctx, "11111111", "377", "123"))
	require.NoError(t, svc.SetLatest(ctx, "11111111", "254", "123"))

	units, err := svc.GetLatest(ctx, "11111111")
	require.NoError(t, err)
	assert.Equal(t, "254", units)
}
