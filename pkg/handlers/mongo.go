package handlers

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/tubeworker/pkg/mongo"
	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

var mongoSchema = configSchema(map[string]any{
	"url":             map[string]any{"type": "string", "minLength": 1},
	"database":        map[string]any{"type": "string", "minLength": 1},
	"collection":      map[string]any{"type": "string", "minLength": 1},
	"connect_timeout": map[string]any{"type": []any{"string", "number"}},
	"retry_attempts":  map[string]any{"type": "integer", "minimum": 1},
}, "url", "database", "collection")

// InsertFunc stores one document.
type InsertFunc func(ctx context.Context, doc any) error

// MongoSink inserts one document per record.
type MongoSink struct {
	insert     InsertFunc
	disconnect func(context.Context) error
}

// NewMongoSink returns a sink using insert. disconnect runs on Close and may be nil.
func NewMongoSink(insert InsertFunc, disconnect func(context.Context) error) *MongoSink {
	return &MongoSink{insert: insert, disconnect: disconnect}
}

func (s *MongoSink) Write(ctx context.Context, rec Record) error {
	return s.insert(ctx, bson.D{
		{Key: "job_id", Value: int64(rec.JobID)},
		{Key: "job_type", Value: rec.JobType},
		{Key: "payload", Value: rec.Payload},
		{Key: "received_at", Value: rec.ReceivedAt},
	})
}

func (s *MongoSink) Close(ctx context.Context) error {
	if s.disconnect == nil {
		return nil
	}
	return s.disconnect(ctx)
}

// Mongo inserts every job as a document into database.collection.
func Mongo(opts queue.Options, logger *slog.Logger) (queue.Handler, error) {
	base, err := newBase(opts, mongoSchema, logger)
	if err != nil {
		return nil, err
	}

	cfg := mongo.DefaultConfig()
	cfg.ConnectionURL = opts.String("url", "")
	cfg.RetryAttempts = opts.Int("retry_attempts", cfg.RetryAttempts)
	if cfg.ConnectTimeout, err = durationOption(opts, "connect_timeout", cfg.ConnectTimeout); err != nil {
		return nil, err
	}
	database, collection := opts.String("database", ""), opts.String("collection", "")

	open := func(ctx context.Context) (Sink, error) {
		coll, err := mongo.Collection(ctx, cfg, database, collection)
		if err != nil {
			return nil, err
		}
		return NewMongoSink(insertInto(coll), coll.Database().Client().Disconnect), nil
	}
	return NewSinkHandler(base, open, failureVerdict(opts)), nil
}

func insertInto(coll *mongodriver.Collection) InsertFunc {
	return func(ctx context.Context, doc any) error {
		_, err := coll.InsertOne(ctx, doc)
		return err
	}
}
