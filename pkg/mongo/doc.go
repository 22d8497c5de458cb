// Package mongo manages the MongoDB connection backing the service's document
// store: users with their embedded billing record, the daily quota ledger,
// tag usage counters and password records.
//
// Configuration is environment-driven (see Config). New retries the initial
// connection because managed clusters frequently refuse connections during
// failover windows.
//
// Transactor wraps session transactions. The quota ledger and the tag
// counter transfer depend on it for their atomic read-then-write steps:
//
//	tx := mongo.NewTransactor(client, cfg.TxTimeout)
//	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
//		// reads and writes using ctx join the transaction
//		return nil
//	})
//
// Transactions require a replica set; a single-node replica set is enough
// for local development.
package mongo
