// Package dedup derives a content fingerprint for generation requests and
// keeps a short-lived cache entry per fingerprint so that concurrent or
// repeated identical requests share a single generation job.
//
// Entries move through pending, completed and failed. Pending and completed
// entries block new work for the same fingerprint. Failed entries are kept
// for inspection only and never block a retry.
package dedup
