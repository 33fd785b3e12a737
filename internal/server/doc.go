// Package server implements the HTTP monitoring API and the websocket live
// transcript feed. It exposes health, statistics, configuration and
// Prometheus metrics endpoints alongside the accumulated transcript.
package server
