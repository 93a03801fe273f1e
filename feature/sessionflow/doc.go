// Package sessionflow binds game sessions to workflow runs.
//
// A run starts with its session and checkpoints the game save every interval, flushing
// characteristics, currency, stage, inventory and metadata in that order. When the session
// expires or is cancelled the run performs one final checkpoint (or, for a cancelled run under
// the discard policy, drops the pending cache-only writes) and completed sessions are archived
// to object storage.
package sessionflow
