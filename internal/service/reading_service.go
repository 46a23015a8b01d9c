package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNoReading = errors.New("no reading available")
)

const (
	readingKeyPrefix = "reading:"
	readingChannel   = "reading_updates"
	readingExpiry    = 2 * time.Minute
)

// ReadingService caches the latest unit reading per meter number in redis.
// The usage job writes through it every tick; the balance view reads it and
// falls back to the database row when the cache is cold.
type ReadingService struct {
	redis *redis.Client
}

// NewReadingService creates a new ReadingService
func NewReadingService(redisClient *redis.Client) *ReadingService {
	return &ReadingService{redis: redisClient}
}

// SetLatest records the freshest reading for a meter and publishes it on the
// reading_updates channel.
func (s *ReadingService) SetLatest(ctx context.Context, meterNum, units, usedUnits string) error {
	key := readingKeyPrefix + meterNum
	if err := s.redis.HSet(ctx, key, map[string]interface{}{
		"units":      units,
		"used_units": usedUnits,
		"updated_at": time.Now().Unix(),
	}).Err(); err != nil {
		return err
	}
	s.redis.Expire(ctx, key, readingExpiry)
	s.redis.Publish(ctx, readingChannel, meterNum+":"+units)
	return nil
}

// GetLatest returns the cached reading for a meter number
func (s *ReadingService) GetLatest(ctx context.Context, meterNum string) (string, error) {
	units, err := s.redis.HGet(ctx, readingKeyPrefix+meterNum, "units").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoReading
		}
		return "", err
	}
	return units, nil
}
