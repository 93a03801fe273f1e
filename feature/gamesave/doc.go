// Package gamesave binds the generic cache-backed resource service to every game-save kind.
//
// Characteristics, currency, stage and metadata are stored as one row per game save; the
// inventory is one row per item. Each kind has its own hash cache namespace so dirty tracking
// and flushing stay independent per kind.
//
// # Writes
//
// During a session clients write cache-only (the default for PUT); the flush scheduler and
// the session workflow checkpoint reconcile the dirty entries. Administrative writes pass
// ?cache_only=false and go through to the database synchronously.
package gamesave
