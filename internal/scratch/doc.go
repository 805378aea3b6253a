// Package scratch manages the per-job temporary workspaces that hold uploads,
// ffmpeg transform descriptors and encoded output.
//
// Every job gets its own directory under the work directory, named by the job
// id. Cleanup removes the whole directory, retrying transient failures such as
// EBUSY or ESTALE with capped exponential backoff. Failures after the last
// retry are logged and reported to the Observer, never returned to clients.
//
// A Manager holds an advisory lock (gofrs/flock) on the work directory while
// the server runs. Holding the lock is what makes the startup Sweep safe: any
// job directory found at that point belongs to a previous process that died
// before cleaning up.
package scratch
