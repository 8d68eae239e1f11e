// Package generation produces learning artifacts in chunks.
//
// A Service validates a request, deduplicates it by fingerprint, creates
// the artifact record and schedules the first chunk on the job queue. The
// Engine runs one chunk per job: it routes the call to a provider, parses
// and validates the returned items, appends them to the artifact and
// either schedules the next chunk, completes the artifact or fails it.
// The artifact's accumulated items are the authoritative progress record,
// so a chunk can be retried or replayed without double counting.
package generation
