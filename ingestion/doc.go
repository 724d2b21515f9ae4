// Package ingestion runs the batch jobs that fill the durable paper store.
//
// A Pipeline fetches pages from the arXiv source, drops papers the store
// already holds, enriches the rest, and saves them:
//   - Backfill pages through the feed until a target number of new papers
//     has been processed, recording a checkpoint after every page so an
//     interrupted run resumes where it stopped
//   - RunDaily processes a single page of the newest papers
//
// Enrichment failures never fail a job; they degrade to fallback summaries
// and tag-only papers. Fetch and save failures do.
package ingestion
