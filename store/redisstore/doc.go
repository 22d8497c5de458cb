// Package redisstore implements the quota ledger on Redis.
package redisstore
