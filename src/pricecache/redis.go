package pricecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coinvest/src/logger"
	"coinvest/src/models"

	"github.com/redis/go-redis/v9"
)

// Key layout: one volatile key per symbol carrying the TTL, plus one durable
// key holding the last known record for fallback reads.
const (
	freshKeyFmt = "price:fresh:%s"
	lastKeyFmt  = "price:last:%s"
)

// -----------------------------------------------------------------------------
// RedisCache
// -----------------------------------------------------------------------------

// RedisCache is the redis-backed IPriceCache, for deployments where several
// backend instances share one price cache. Freshness is delegated to the key
// TTL; the durable "last" key serves GetAllAny when providers are down.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	symbols []string
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisCache(cfg models.MCacheConfig, symbols []string, log *logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{
		client:  client,
		ttl:     time.Duration(cfg.TTLSeconds) * time.Second,
		symbols: symbols,
		Logger:  log,
	}, nil
}

// -----------------------------------------------------------------------------

func (c *RedisCache) Get(symbol string) (models.MPriceRecord, bool) {
	data, err := c.client.Get(context.Background(), fmt.Sprintf(lastKeyFmt, symbol)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.Logger.Error("redis get %s: %v", symbol, err)
		}
		return models.MPriceRecord{}, false
	}

	var rec models.MPriceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.Logger.Error("redis unmarshal %s: %v", symbol, err)
		return models.MPriceRecord{}, false
	}
	return rec, true
}

// -----------------------------------------------------------------------------

func (c *RedisCache) GetAllFresh() []models.MPriceRecord {
	return c.getAll(freshKeyFmt)
}

func (c *RedisCache) GetAllAny() []models.MPriceRecord {
	return c.getAll(lastKeyFmt)
}

// -----------------------------------------------------------------------------

func (c *RedisCache) getAll(keyFmt string) []models.MPriceRecord {
	keys := make([]string, 0, len(c.symbols))
	for _, sym := range c.symbols {
		keys = append(keys, fmt.Sprintf(keyFmt, sym))
	}

	vals, err := c.client.MGet(context.Background(), keys...).Result()
	if err != nil {
		c.Logger.Error("redis mget: %v", err)
		return nil
	}

	out := make([]models.MPriceRecord, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // key absent or expired
		}
		var rec models.MPriceRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			c.Logger.Error("redis unmarshal %s: %v", c.symbols[i], err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// -----------------------------------------------------------------------------

func (c *RedisCache) Put(rec models.MPriceRecord, observedAt time.Time) {
	data, err := json.Marshal(rec)
	if err != nil {
		c.Logger.Error("redis marshal %s: %v", rec.Symbol, err)
		return
	}

	ctx := context.Background()
	// Expiry relative to observation time, not write time.
	ttl := time.Until(observedAt.Add(c.ttl))
	if ttl <= 0 {
		ttl = time.Millisecond
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(freshKeyFmt, rec.Symbol), data, ttl)
	pipe.Set(ctx, fmt.Sprintf(lastKeyFmt, rec.Symbol), data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		c.Logger.Error("redis put %s: %v", rec.Symbol, err)
	}
}

// -----------------------------------------------------------------------------

func (c *RedisCache) Close() error {
	return c.client.Close()
}
