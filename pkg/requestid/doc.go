// Package requestid tags every inbound request with an identifier that is
// echoed in the X-Request-ID response header and attached to log records via
// LogExtractor. Webhook redeliveries keep their own ids, which makes it easy to
// correlate provider retries in the logs.
package requestid
