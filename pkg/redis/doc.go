// Package redis connects to Redis with go-redis and provides a distributed
// Locker used to serialize subscription reconciliations across instances.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	locker := redis.NewLockerFromConfig(client, cfg)
//	unlock, err := locker.Lock(ctx, "subscription:pair:...")
//	if err != nil {
//		return err
//	}
//	defer unlock(context.WithoutCancel(ctx))
//
// The lock is a SET NX PX key holding a random token; release deletes the
// key only if the token still matches. It is advisory: the database
// transaction remains the authority on uniqueness.
//
// Healthcheck returns a probe for httpserver.HealthCheckHandler.
package redis
