// Package app is the composition root: it owns the Metadata Store,
// Credential Vault, Event Bus, Health Prober, Retention Collector, the
// per-camera Supervisor registry, and the per-camera ANPR Worker pool,
// and exposes the operations the Control Surface translates HTTP/WS
// requests into. Grounded on the teacher's cmd/server/main.go layered
// startup, generalized from one global MediaMTX controller to a registry
// of per-camera Supervisors plus the additional retention/ANPR fabric
// SPEC_FULL adds.
package app
