// Package api exposes the service over HTTP.
//
// Routes:
//
//	POST /webhooks/billing             payment provider webhook
//	POST /billing/cancel               cancel the caller's subscription at period end
//	POST /rpc/quota.consume            callable: record one use of a daily quota
//	POST /rpc/tags.merge               callable: fold one tag into another
//	POST /internal/triggers/passwords  tag-set change pushed by a document trigger
//	GET  /health/live, /health/ready, /metrics
//
// Plain endpoints answer errors as {"error":{"code","message"}} through the
// handler package; the /rpc endpoints speak the callable protocol.
package api
