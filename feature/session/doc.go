// Package session manages the play-session lifecycle of game saves.
//
// A session is created for a game save, extended by heartbeats and ends either by
// cancellation or by passing its end time. Expiry is passive: readers compare the end time
// with the clock. Every update goes through UpdateVersioned, which only succeeds when the
// caller still holds the stored version; the loser of a race gets apperror.ErrStaleVersion.
//
// Creation is serialized per game save with a keyed lock so that at most one non-terminal
// session exists per save. Sessions are cached by id and invalidated on every mutation.
package session
