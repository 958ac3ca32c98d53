/*
Package observability turns engine lifecycle hooks into logs and Prometheus metrics.

Metrics and LogHooks each produce a domain.LifecycleHooks value; Combine merges
several of them so one engine can feed both.
*/
package observability
