// Package cache provides a Redis read-through cache in front of the product lookup.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog_chat/internal/catalog/repository"
	"catalog_chat/platform/config"
	"catalog_chat/platform/events"
	"catalog_chat/platform/logger"
)

const keyPrefix = "catalog:products:"

// NewClient connects to the Redis server named by the cache URL.
func NewClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Reader caches lookup results per filter for a fixed TTL.
// Redis failures never fail a lookup; they fall through to the wrapped reader.
type Reader struct {
	next   repository.ProductReader
	client redis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

var _ repository.ProductReader = (*Reader)(nil)

// NewReader wraps next with a cache stored in client.
func NewReader(next repository.ProductReader, client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *Reader {
	return &Reader{next: next, client: client, ttl: ttl, log: log}
}

// FindProducts implements repository.ProductReader.
func (r *Reader) FindProducts(ctx context.Context, filter repository.ProductFilter) ([]repository.Product, error) {
	key := Key(filter)

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var products []repository.Product
		if jsonErr := json.Unmarshal(raw, &products); jsonErr == nil {
			r.log.WithContext(ctx).Debug("product cache hit", "key", key, "rows", len(products))
			return products, nil
		}
		r.log.WithContext(ctx).Warn("discarding unreadable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		r.log.WithContext(ctx).Warn("product cache unavailable", "error", err)
	}

	products, err := r.next.FindProducts(ctx, filter)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(products); jsonErr == nil {
		if setErr := r.client.Set(ctx, key, payload, r.ttl).Err(); setErr != nil {
			r.log.WithContext(ctx).Warn("failed to store product cache entry", "error", setErr)
		}
	}
	return products, nil
}

// Invalidate drops every cached lookup. Call it after the catalog changes.
func (r *Reader) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan product cache: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("clear product cache: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Subscribe clears the cache whenever the catalog is reseeded.
func (r *Reader) Subscribe(bus events.Bus, eventName string) {
	bus.Subscribe(eventName, events.HandlerFunc(func(ctx context.Context, _ events.Event) error {
		return r.Invalidate(ctx)
	}))
}

// Key derives the cache key for a filter. Name fragments are lowercased the way
// ILIKE compares them; no wider folding, so "ß" and "ss" stay distinct.
func Key(filter repository.ProductFilter) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString("name=")
	b.WriteString(strings.ToLower(filter.NameContains))
	b.WriteString("|barcode=")
	b.WriteString(filter.Barcode)
	b.WriteString("|min=")
	if filter.MinPrice != nil {
		b.WriteString(filter.MinPrice.String())
	}
	b.WriteString("|max=")
	if filter.MaxPrice != nil {
		b.WriteString(filter.MaxPrice.String())
	}
	return b.String()
}
