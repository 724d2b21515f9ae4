package cache

import "github.com/poiesic/paperfeed/core"

// Page is one slice of a resolved feed.
type Page struct {
	Papers  []core.Paper
	Page    int
	Total   int
	HasMore bool
}

// Paginate slices papers at offset page*limit. Out of range pages are empty.
func Paginate(papers []core.Paper, page, limit int) Page {
	page = max(page, 0)
	total := len(papers)
	result := Page{Page: page, Total: total, Papers: []core.Paper{}}
	if limit <= 0 {
		return result
	}

	if page > (total-1)/limit {
		return result
	}
	offset := page * limit
	result.HasMore = offset+limit < total
	if offset >= total {
		return result
	}
	result.Papers = papers[offset:min(offset+limit, total)]
	return result
}
