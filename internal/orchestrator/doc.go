// Package orchestrator runs the scan, transfer and publish cycle.
//
// Each cycle lists the newest candidates, then handles them one at a time:
// acquire the transfer descriptor, run the transfer to a terminal state and
// hand a completed artifact to the publish gate. A failure or panic while
// handling one candidate is logged and counted once and never stops the
// rest of the batch. Cycles run on a fixed interval and on demand through
// Trigger, and are skipped while the run state is paused.
package orchestrator
