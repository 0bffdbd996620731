// Package transfer drives a single swarm download from descriptor to local
// artifact.
//
// A Job moves through Pending -> Active -> {Complete, TimedOut, Failed}. The
// Tracker owns the polling loop around an Engine: it starts the job, polls
// status on a fixed interval, logs progress, and cancels the job when its
// deadline passes. Exactly one terminal state is reached per job and no
// engine call is made after it.
package transfer
