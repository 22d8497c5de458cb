// Package redis connects to the Redis server used as an alternative backend
// for the daily quota ledger.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	ledger := redisstore.NewQuotaLedger(client)
//
// Connect retries the initial ping; Healthcheck plugs into the readiness probe.
package redis
