// Package arxiv fetches paper metadata from the arXiv export API.
//
// The API answers with an Atom feed which is parsed with gofeed's Atom
// parser. Requests are paced by a token-bucket limiter because arXiv asks
// clients to wait three seconds between calls.
package arxiv
