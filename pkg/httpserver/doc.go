// Package httpserver runs the billsync HTTP listener and its health probes.
//
// Server wraps http.Server with context-driven graceful shutdown: Run and
// Serve return once the context is cancelled and in-flight requests have
// drained. LivenessHandler and ReadinessHandler back /healthz and /readyz.
package httpserver
