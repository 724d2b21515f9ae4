package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Vector is an embedding produced by the upstream embedding model.
// Vectors are expected to be unit length so that a dot product equals
// cosine similarity.
type Vector []float32

// Fingerprint returns a deterministic 64-bit fingerprint of text using BLAKE2b.
// Identical text always produces the identical fingerprint.
func Fingerprint(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// Method identifies how a similarity score was produced.
type Method string

const (
	// MethodEmbedding means the score is the dot product of two embeddings.
	MethodEmbedding Method = "embedding"
	// MethodTags means the score came from tag and category overlap.
	MethodTags Method = "tags"
)

// Summary is the structured digest produced by the summarization model.
type Summary struct {
	Headline string   `json:"headline"`
	Problem  string   `json:"problem"`
	Approach string   `json:"approach"`
	Method   string   `json:"method"`
	Findings string   `json:"findings"`
	Takeaway string   `json:"takeaway"`
	Tags     []string `json:"tags"`
	// Fallback is set when the summary was templated locally because the
	// model call or its response failed.
	Fallback bool `json:"fallback,omitempty"`
}

// Paper is one arXiv paper as it flows through the pipeline.
// Summary is nil until enrichment ran and Embedding is empty when no
// embedding was produced; both states are expected.
type Paper struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Abstract     string    `json:"abstract"`
	Authors      []string  `json:"authors"`
	Categories   []string  `json:"categories"`
	Published    time.Time `json:"published"`
	Updated      time.Time `json:"updated"`
	PDFURL       string    `json:"pdfUrl,omitempty"`
	ArxivURL     string    `json:"arxivUrl,omitempty"`
	Summary      *Summary  `json:"summary,omitempty"`
	Embedding    Vector    `json:"embedding,omitempty"`
	SummarizedAt time.Time `json:"summarizedAt,omitzero"`
}

// HasEmbedding reports whether the paper carries a usable embedding.
func (p *Paper) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// Enriched reports whether the paper has a summary, fallback or not.
func (p *Paper) Enriched() bool {
	return p.Summary != nil
}

// Tags returns the summary tags, or nil for a paper that was never enriched.
func (p *Paper) Tags() []string {
	if p.Summary == nil {
		return nil
	}
	return p.Summary.Tags
}

// WithoutEmbedding returns a shallow copy of the paper with the embedding removed.
func (p Paper) WithoutEmbedding() Paper {
	p.Embedding = nil
	return p
}

// PublicPaper is the representation served to clients. It never carries
// an embedding.
type PublicPaper struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Abstract         string    `json:"abstract"`
	Authors          []string  `json:"authors"`
	Categories       []string  `json:"categories"`
	Published        time.Time `json:"published"`
	Updated          time.Time `json:"updated"`
	PDFURL           string    `json:"pdfUrl,omitempty"`
	ArxivURL         string    `json:"arxivUrl,omitempty"`
	Summary          *Summary  `json:"summary,omitempty"`
	HasEmbedding     bool      `json:"hasEmbedding"`
	SimilarityScore  *float64  `json:"similarityScore,omitempty"`
	SimilarityMethod Method    `json:"similarityMethod,omitempty"`
	RelevanceScore   *float64  `json:"relevanceScore,omitempty"`
}

// Public converts the paper into its served form.
func (p *Paper) Public() PublicPaper {
	return PublicPaper{
		ID:           p.ID,
		Title:        p.Title,
		Abstract:     p.Abstract,
		Authors:      p.Authors,
		Categories:   p.Categories,
		Published:    p.Published,
		Updated:      p.Updated,
		PDFURL:       p.PDFURL,
		ArxivURL:     p.ArxivURL,
		Summary:      p.Summary,
		HasEmbedding: p.HasEmbedding(),
	}
}

// PublicPapers converts a slice of papers into their served form.
func PublicPapers(papers []Paper) []PublicPaper {
	out := make([]PublicPaper, len(papers))
	for i := range papers {
		out[i] = papers[i].Public()
	}
	return out
}

// Match is a candidate paper scored against a target or a query.
// Matches are computed on demand and never persisted.
type Match struct {
	Paper  Paper
	Score  float64
	Method Method
	// HasEmbedding records whether the candidate carried an embedding
	// before it was stripped for serving.
	HasEmbedding bool
}

// Public converts the match into a served paper carrying its score.
func (m Match) Public() PublicPaper {
	pp := m.Paper.Public()
	pp.HasEmbedding = pp.HasEmbedding || m.HasEmbedding
	score := m.Score
	pp.SimilarityScore = &score
	pp.SimilarityMethod = m.Method
	return pp
}

// Checkpoint records how far a batch job progressed so it can resume.
type Checkpoint struct {
	Job       string    `json:"job"`
	Start     int       `json:"start"`     // offset of the next feed page to fetch
	Processed int       `json:"processed"` // papers saved so far
	UpdatedAt time.Time `json:"updatedAt"`
}
