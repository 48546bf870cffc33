// Package control is the Control Surface (SPEC_FULL §4.9): a chi router
// exposing the camera/recording/ANPR/system REST routes, HLS playlist and
// segment file routes, a Prometheus /metrics endpoint, and (via the ws
// subpackage) the /ws WebSocket upgrade. Every handler is a thin
// translation onto internal/app.Application; no domain logic lives here.
// Grounded on ManuGH-xg2g's chi-based routing and httprate middleware
// composition.
package control
