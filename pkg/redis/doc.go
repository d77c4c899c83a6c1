// Package redis connects to a Redis server with retries.
//
// Connect parses a redis:// URL, pings the server and retries up to
// Config.RetryAttempts times within Config.ConnectTimeout.
//
//	client, err := redis.Connect(ctx, redis.Config{
//	    URL:           "redis://localhost:6379/0",
//	    RetryAttempts: 3,
//	    RetryInterval: time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// The redis job handler in pkg/handlers opens its connection this way.
package redis
