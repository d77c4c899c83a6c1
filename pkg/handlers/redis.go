package handlers

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tubeworker/pkg/queue"
	"github.com/dmitrymomot/tubeworker/pkg/redis"
)

var redisConfigSchema = configSchema(map[string]any{
	"url":             map[string]any{"type": "string", "minLength": 1},
	"list":            map[string]any{"type": "string", "minLength": 1},
	"channel":         map[string]any{"type": "string", "minLength": 1},
	"connect_timeout": map[string]any{"type": []any{"string", "number"}},
	"retry_attempts":  map[string]any{"type": "integer", "minimum": 1},
}, "url")

// RedisWriter is the part of a go-redis client the redis sink uses.
type RedisWriter interface {
	RPush(ctx context.Context, key string, values ...any) *goredis.IntCmd
	Publish(ctx context.Context, channel string, message any) *goredis.IntCmd
	Close() error
}

// RedisSink appends records to a list or publishes them on a channel.
type RedisSink struct {
	client  RedisWriter
	list    string
	channel string
}

// NewRedisSink returns a sink writing through client. Exactly one of list
// and channel should be set; list wins when both are.
func NewRedisSink(client RedisWriter, list, channel string) *RedisSink {
	return &RedisSink{client: client, list: list, channel: channel}
}

func (s *RedisSink) Write(ctx context.Context, rec Record) error {
	data, err := rec.JSON()
	if err != nil {
		return err
	}
	if s.list != "" {
		return s.client.RPush(ctx, s.list, data).Err()
	}
	return s.client.Publish(ctx, s.channel, data).Err()
}

func (s *RedisSink) Close(context.Context) error {
	return s.client.Close()
}

// Redis pushes every job record as JSON onto a Redis list ("list" option,
// RPUSH) or publishes it on a channel ("channel" option).
func Redis(opts queue.Options, logger *slog.Logger) (queue.Handler, error) {
	base, err := newBase(opts, redisConfigSchema, logger)
	if err != nil {
		return nil, err
	}

	list, channel := opts.String("list", ""), opts.String("channel", "")
	if (list == "") == (channel == "") {
		return nil, optionError("list", "one_of", "exactly one of list and channel is required")
	}

	cfg := redis.DefaultConfig()
	cfg.URL = opts.String("url", "")
	cfg.RetryAttempts = opts.Int("retry_attempts", cfg.RetryAttempts)
	if cfg.ConnectTimeout, err = durationOption(opts, "connect_timeout", cfg.ConnectTimeout); err != nil {
		return nil, err
	}

	open := func(ctx context.Context) (Sink, error) {
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisSink(client, list, channel), nil
	}
	return NewSinkHandler(base, open, failureVerdict(opts)), nil
}
