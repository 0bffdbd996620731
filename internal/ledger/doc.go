// Package ledger is the durable record of published artifacts.
//
// The ledger enforces at-most-once publishing: a key is recorded only after
// the channel accepted the artifact, and the publish gate checks Has before
// every send. The whole ledger is rewritten on each Record through a
// temporary file and an atomic rename, so a crash never leaves a truncated
// file behind.
//
// A ledger file is owned by exactly one process. Load takes an exclusive
// advisory lock next to the file and fails if another process holds it.
//
// Load never fails on a missing or corrupted file. A missing file is a first
// run; a corrupted file is moved aside and reported through LoadOutcome so
// the caller can decide whether to continue with an empty ledger.
package ledger
