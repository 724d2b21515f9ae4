package enrich

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/paperfeed/ai"
	"github.com/poiesic/paperfeed/core"
)

const (
	abstractLimit      = 600
	headlineLimit      = 60
	fallbackTagCount   = 3
	tokensPerPaper     = 250
	summaryPromptStart = "Analyze these %d AI/ML papers. Return a JSON array with structured summaries optimized for LinkedIn sharing."
)

const summaryPromptFormat = `

For each paper return:
{
  "id": 1,
  "headline": "Catchy 5-10 word headline",
  "problem": "One sentence: What problem does this solve?",
  "approach": "One sentence: How do they solve it?",
  "method": "One sentence: Key technical innovation",
  "findings": "One sentence: Main results/impact",
  "takeaway": "One sentence: Why this matters for practitioners",
  "tags": ["tag1", "tag2"]
}

Keep each field concise (under 25 words). Tags: LLM, Vision, NLP, Efficiency, Training, Benchmarks, Multimodal, RL, Safety, Data

Return ONLY a JSON array, no markdown.`

// summaryPrompt renders the batch prompt. Papers are numbered from 1 so the
// model can echo the number back as "id".
func summaryPrompt(papers []core.Paper) string {
	var b strings.Builder
	fmt.Fprintf(&b, summaryPromptStart, len(papers))
	b.WriteString("\n\n")
	for i, p := range papers {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %q\n%s", i+1, p.Title, truncateAbstract(p.Abstract))
	}
	b.WriteString(summaryPromptFormat)
	return b.String()
}

func truncateAbstract(abstract string) string {
	short := ai.TruncateText(abstract, abstractLimit)
	if short == abstract {
		return abstract
	}
	return short + "..."
}

// rawSummary is one element of the model's JSON array. The id is kept raw
// because models emit it as a number or as a string.
type rawSummary struct {
	ID       json.RawMessage `json:"id"`
	Headline string          `json:"headline"`
	Problem  string          `json:"problem"`
	Approach string          `json:"approach"`
	Method   string          `json:"method"`
	Findings string          `json:"findings"`
	Takeaway string          `json:"takeaway"`
	Tags     []string        `json:"tags"`
}

func (r *rawSummary) number() (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(r.ID)), `"`)
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// parseSummaries extracts the JSON array from a completion.
func parseSummaries(response string) ([]rawSummary, error) {
	array, err := ai.ExtractJSON(response, '[')
	if err != nil {
		return nil, err
	}

	var summaries []rawSummary
	if err := json.Unmarshal([]byte(array), &summaries); err != nil {
		if err := json.Unmarshal([]byte(ai.RepairJSON(array)), &summaries); err != nil {
			return nil, fmt.Errorf("failed to parse summaries: %w", err)
		}
	}
	if len(summaries) == 0 {
		return nil, ErrSummaryCount
	}
	return summaries, nil
}

// matchSummaries pairs each paper with its summary: by position first, then
// by the echoed id. Papers left without a match get a fallback.
func matchSummaries(papers []core.Paper, summaries []rawSummary) []core.Summary {
	byNumber := make(map[int]*rawSummary, len(summaries))
	for i := range summaries {
		if n, ok := summaries[i].number(); ok {
			if _, dup := byNumber[n]; !dup {
				byNumber[n] = &summaries[i]
			}
		}
	}

	out := make([]core.Summary, len(papers))
	for i := range papers {
		var raw *rawSummary
		if i < len(summaries) {
			raw = &summaries[i]
		} else {
			raw = byNumber[i+1]
		}
		if raw == nil {
			out[i] = fallbackSummary(&papers[i])
			continue
		}
		out[i] = fromRaw(&papers[i], raw)
	}
	return out
}

func fromRaw(paper *core.Paper, raw *rawSummary) core.Summary {
	s := core.Summary{
		Headline: strings.TrimSpace(raw.Headline),
		Problem:  strings.TrimSpace(raw.Problem),
		Approach: strings.TrimSpace(raw.Approach),
		Method:   strings.TrimSpace(raw.Method),
		Findings: strings.TrimSpace(raw.Findings),
		Takeaway: strings.TrimSpace(raw.Takeaway),
		Tags:     raw.Tags,
	}
	if s.Headline == "" {
		s.Headline = fallbackHeadline(paper)
	}
	if len(s.Tags) == 0 {
		s.Tags = fallbackTags(paper)
	}
	return s
}

// fallbackSummary is used when the model failed or its answer was unusable.
func fallbackSummary(paper *core.Paper) core.Summary {
	return core.Summary{
		Headline: fallbackHeadline(paper),
		Problem:  "See abstract for problem statement.",
		Approach: "See abstract for methodology.",
		Method:   "See abstract for technical details.",
		Findings: "See abstract for key results.",
		Takeaway: "Read the full paper for insights.",
		Tags:     fallbackTags(paper),
		Fallback: true,
	}
}

func fallbackHeadline(paper *core.Paper) string {
	return ai.TruncateText(paper.Title, headlineLimit)
}

func fallbackTags(paper *core.Paper) []string {
	if len(paper.Categories) == 0 {
		return []string{}
	}
	return append([]string(nil), paper.Categories[:min(len(paper.Categories), fallbackTagCount)]...)
}
