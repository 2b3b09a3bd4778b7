package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/giahuylhoang/dental-api/internal/clinic"
	"github.com/giahuylhoang/dental-api/internal/schedule"
)

// SlotCache caches computed slot lists per doctor with a short TTL. Keys embed
// a per-doctor version counter; invalidation bumps the counter so stale
// entries simply age out instead of being enumerated and deleted.
//
// The cache serves the read path only. Booking never consults it; the
// transactional re-check in the repository is what guards correctness.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewSlotCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *SlotCache {
	return &SlotCache{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "slot-cache").Logger(),
	}
}

func (c *SlotCache) versionKey(doctorID int64) string {
	return fmt.Sprintf("slots:ver:%d", doctorID)
}

func (c *SlotCache) dataKey(doctorID int64, version string, serviceID int64, window schedule.Interval) string {
	return fmt.Sprintf("slots:%d:%s:%d:%d:%d",
		doctorID, version, serviceID, window.Start.Unix(), window.End.Unix())
}

func (c *SlotCache) Get(ctx context.Context, doctorID, serviceID int64, window schedule.Interval) (*clinic.SlotResult, bool) {
	version, err := c.client.Get(ctx, c.versionKey(doctorID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Int64("doctor_id", doctorID).Msg("version lookup failed")
		}
		version = "0"
	}

	raw, err := c.client.Get(ctx, c.dataKey(doctorID, version, serviceID, window)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Int64("doctor_id", doctorID).Msg("cache read failed")
		}
		return nil, false
	}

	var result clinic.SlotResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.log.Warn().Err(err).Msg("cache entry corrupt, ignoring")
		return nil, false
	}
	return &result, true
}

func (c *SlotCache) Set(ctx context.Context, doctorID, serviceID int64, window schedule.Interval, result *clinic.SlotResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache encode failed")
		return
	}

	version, err := c.client.Get(ctx, c.versionKey(doctorID)).Result()
	if err != nil {
		version = "0"
	}

	if err := c.client.Set(ctx, c.dataKey(doctorID, version, serviceID, window), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Int64("doctor_id", doctorID).Msg("cache write failed")
	}
}

// InvalidateDoctor bumps the doctor's version so all cached windows for that
// doctor miss from now on.
func (c *SlotCache) InvalidateDoctor(ctx context.Context, doctorID int64) {
	if err := c.client.Incr(ctx, c.versionKey(doctorID)).Err(); err != nil {
		c.log.Warn().Err(err).Int64("doctor_id", doctorID).Msg("cache invalidation failed")
	}
}
