// Package postgres stores listings, accounts, notifications and threshold
// preferences in PostgreSQL.
//
// The schema ships as embedded golang-migrate migrations and is applied with
// Migrate. Uniqueness of a notification per (recipient, pair) is enforced by
// a table constraint, so concurrent inserts from several engine processes
// still produce at most one row:
//
//	INSERT ... ON CONFLICT (recipient_id, pair_key) DO NOTHING
//
// Job and checkpoint bookkeeping stays in the embedded store.
package postgres
