// Package reembed regenerates embeddings for papers already in the store,
// either after switching embedding models or to repair papers whose
// embedding failed during ingestion.
package reembed
