// Package action implements the Action rule engine: persisted
// IF -> THEN -> {success|error} chains that react to MQTT telemetry
// and dispatch commands back to devices.
//
// # Architecture
//
//	Registry (registry.go)      — hot-reloadable Actions + Runtimes + Index
//	Engine (engine.go)          — consumes the actions queue directly,
//	                              drives each Runtime's state machine
//	Runtime/PendingWait (runtime.go) — per-Action live state, branch wait
//	Index (index.go)            — fully-qualified trigger/result topic sets
//	Compare/ExtractScalar (compare.go) — payload scalar extraction + match
//
// The Engine does not use the generic queue.Pool consumer mixin: a
// branch result must signal its PendingWait synchronously as messages
// are dispatched, not from inside a spawned worker, so that no fast
// result is ever lost to a race with worker scheduling. Engine's own
// dispatch loop plays that synchronous role, spawning a bounded worker
// only for the (slower, blocking) THEN execution itself.
//
// # Hot reload
//
// Registry.RefreshCache rebuilds the Runtime map and Index from
// scratch and swaps them in atomically; in-flight workers that hold a
// Runtime pointer from before the swap simply finish against
// (possibly now-stale) state, accepted here as best effort.
package action
