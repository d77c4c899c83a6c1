// Package mongo connects to MongoDB using the official v2 driver.
//
// Connect applies the pool settings from Config and pings the deployment,
// retrying up to Config.RetryAttempts times. Collection is a shortcut for
// handlers that write into a single collection.
//
//	coll, err := mongo.Collection(ctx, cfg, "jobs", "archive")
//	if err != nil {
//	    return err
//	}
//	defer coll.Database().Client().Disconnect(ctx)
package mongo
