// Package reindex performs bulk maintenance over a tree of stored
// conversations: legacy single-file transcripts are migrated to the chunked
// layout and chat indexes of chunked conversations are verified or rebuilt.
//
// Work runs in batches on a worker pool, retries transient I/O failures with
// exponential backoff, reports progress to a writer, and can resume from a
// checkpoint after an interruption.
package reindex
