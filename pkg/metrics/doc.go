// Package metrics defines the Prometheus collectors of the service and an
// HTTP middleware that records request counts and latencies per chi route.
//
// A nil *Metrics is not valid; components that may run without metrics take
// an optional observer instead.
package metrics
