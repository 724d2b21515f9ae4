package search

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterValidation(validation Validation)
	AfterExpansion(expanded string)
	AfterEmbedding(cached bool, err error)
	AfterScoring(candidates, kept int)
	Finish(response *Response)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                 {}
func (n *noopMonitor) AfterValidation(_ Validation)   {}
func (n *noopMonitor) AfterExpansion(_ string)        {}
func (n *noopMonitor) AfterEmbedding(_ bool, _ error) {}
func (n *noopMonitor) AfterScoring(_, _ int)          {}
func (n *noopMonitor) Finish(_ *Response)             {}
