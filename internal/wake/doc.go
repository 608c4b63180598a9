package wake

// Package wake is the platform wake primitive behind reminders: a durable
// one-shot timer service keyed by event id.
//
// The registry holds exactly one trigger per key at rest. Arming persists the
// trigger to SQLite so it survives restarts; Start() rehydrates persisted
// rows (overdue ones fire immediately, future ones re-arm) and runs a cron
// sweep that catches wakes the runtime timers slept through. Firing is
// best-effort at-or-after the requested instant, never before.
