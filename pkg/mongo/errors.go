package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")
	// ErrTransaction wraps every failure surfaced by Transactor.WithTransaction,
	// including callback errors, once the driver stops retrying.
	ErrTransaction = errors.New("mongo transaction failed")
)
