// Package enrich attaches model-generated summaries and embeddings to papers.
//
// Papers are summarized several at a time in a single completion call and
// the batches are paced by a rate limiter. Rate-limited completions are
// retried with exponential backoff. Any other failure, including a response
// that cannot be parsed, gives the affected papers a templated fallback
// summary so that enrichment as a whole never fails. Embeddings are
// generated per paper on a worker pool; a paper whose embedding fails keeps
// an empty embedding and is ranked by tags instead.
package enrich
