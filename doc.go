// Package gatehouse is an embeddable credential and session-token
// lifecycle engine: login with brute-force lockout, dual-token
// (access/refresh) issuance, one-time-use refresh rotation with
// reuse detection and mass revocation, idempotent revocation, and
// password-reset token issuance/redemption.
//
// Applications construct an [Engine] through the [Builder], providing a
// transactional [store.Store] implementation (a GORM-backed one ships
// in store/gormstore) and optionally a shared [lockout.Tracker] for
// fleet deployments. The engine owns the protocol; HTTP routing,
// persistence engine internals, and reset-link delivery stay with the
// caller.
package gatehouse
