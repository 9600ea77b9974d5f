// Package engine admits ball events into a globe's log and serves the
// globe's history back.
//
// Writes follow a validate-then-append protocol. Both steps run under a
// mutex keyed by globe id, so two writers of the same globe can never
// validate against the same projection; writers of different globes do
// not wait for each other. Reads take no lock and rely on the snapshot
// isolation of the underlying store.
//
// The alive-objects projection is computed by folding the globe's events.
// With the projection cache enabled the fold is incremental: the engine
// keeps the last folded event id per globe and only folds newer entries.
// Since every append of a globe happens under that globe's lock and ids
// increase, the cached projection always equals a full replay. Verify
// checks that equality and is what the replay command runs.
package engine
