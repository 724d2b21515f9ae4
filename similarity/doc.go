// Package similarity scores papers against each other and ranks related papers.
//
// Two scoring modes exist and are chosen per pair:
//
//   - Embedding mode: the dot product of two equal-length embeddings. The
//     embedding model returns unit vectors, so this equals cosine similarity.
//     Vectors are never renormalized here.
//   - Fallback mode: min((2*sharedTags + sharedCategories)/10, 1), computed
//     with set semantics.
//
// A pair uses embedding mode only when both papers carry embeddings of the
// same length. Within one ranking call, candidates may therefore be scored
// by different modes. Each mode has its own threshold; both default to 0.3.
package similarity
