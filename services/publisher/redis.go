package publisher

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
)

// RedisPublisher implements Publisher on a Redis stream.
type RedisPublisher struct {
	client    *redis.Client
	ctx       context.Context
	stream    string
	maxLength int
}

// NewRedisPublisher creates a Redis publisher writing to the given stream.
func NewRedisPublisher(ctx context.Context, addr string, db int, stream string, maxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:    client,
		ctx:       ctx,
		stream:    stream,
		maxLength: maxLength,
	}
}

// PublishReading appends one reading to the stream as flat fields, so
// consumers in any language can read it without a shared codec.
func (p *RedisPublisher) PublishReading(reading domain.PriceReading) error {
	return p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"item":      reading.ItemName,
			"url":       reading.URL,
			"price":     strconv.FormatFloat(reading.Price, 'f', -1, 64),
			"timestamp": reading.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		},
	}).Err()
}

// TrimStream caps the stream at the configured maximum length
func (p *RedisPublisher) TrimStream() error {
	if p.maxLength <= 0 {
		return nil
	}
	return p.client.XTrimMaxLen(p.ctx, p.stream, int64(p.maxLength)).Err()
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
