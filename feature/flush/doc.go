// Package flush reconciles dirty cache entries with the database on a fixed interval.
//
// Each scan lists the dirty keys of every resource kind and flushes them one by one through
// the kind's resource service. Flushing a clean entry is a no-op and a failed key stays dirty,
// so scans are idempotent and safe to run next to session workflow checkpoints.
package flush
