// Package workflow is a small in-process durable state machine for long-running runs.
//
// A run moves Started -> {Checkpointing <-> Idle} -> Finalizing -> Completed, and can be
// Cancelled from any non-terminal state. Each checkpoint executes the ordered steps of a
// Definition; every step is retried with exponential backoff up to Config.MaxAttempts, and a
// step that still fails is reported through Definition.StepFailed without undoing earlier steps.
//
// Run state is persisted to a badger-backed Log after every transition, so a restarted engine
// resumes unfinished runs. Complete and Cancel signals are recorded immediately but only take
// effect between activities; the final checkpoint runs exactly once per run.
package workflow
