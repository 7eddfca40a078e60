package storage

import (
	"regexp"
	"slices"
	"strings"

	"github.com/Benny93/typegraph-go/internal/graph"
)

var (
	separators  = regexp.MustCompile(`[_.\-\s/:()\[\]#?|]+`)
	camelBreak  = regexp.MustCompile(`([a-z])([A-Z])`)
	letterDigit = regexp.MustCompile(`([a-zA-Z])(\d)`)
	digitLetter = regexp.MustCompile(`(\d)([a-zA-Z])`)
)

// tokenize splits text into lowercase search tokens. Titles such as
// "UserProfile" and paths such as "input(3):/user_id" are split on case,
// separator and digit boundaries. The whole word is kept as a token too.
func tokenize(text string) []string {
	tokens := make(map[string]bool)
	for _, word := range separators.Split(text, -1) {
		if word == "" {
			continue
		}
		tokens[strings.ToLower(word)] = true

		split := camelBreak.ReplaceAllString(word, "$1 $2")
		split = letterDigit.ReplaceAllString(split, "$1 $2")
		split = digitLetter.ReplaceAllString(split, "$1 $2")
		for _, part := range strings.Fields(split) {
			tokens[strings.ToLower(part)] = true
		}
	}

	out := make([]string, 0, len(tokens))
	for t := range tokens {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// searchText is the text indexed for a node.
func searchText(node *graph.GraphNode) []string {
	text := []string{node.Name, node.Description, string(node.Label)}
	text = append(text, node.Paths...)
	return text
}

// ftsIndex is an in-memory inverted index from token to node ID to term
// frequency. Callers synchronize access.
type ftsIndex struct {
	postings map[string]map[string]int
}

func newFTSIndex() *ftsIndex {
	return &ftsIndex{postings: make(map[string]map[string]int)}
}

func (f *ftsIndex) add(node *graph.GraphNode) {
	for _, field := range searchText(node) {
		for _, token := range tokenize(field) {
			if f.postings[token] == nil {
				f.postings[token] = make(map[string]int)
			}
			f.postings[token][node.ID]++
		}
	}
}

// size returns the number of distinct tokens.
func (f *ftsIndex) size() int {
	return len(f.postings)
}

// search scores nodes by summed term frequency. lookup resolves IDs to
// nodes; unknown IDs are skipped. Ties are broken by type key order.
func (f *ftsIndex) search(query string, limit int, lookup func(id string) *graph.GraphNode) []SearchResult {
	scores := make(map[string]int)
	for _, token := range tokenize(query) {
		for id, freq := range f.postings[token] {
			scores[id] += freq
		}
	}

	type hit struct {
		node  *graph.GraphNode
		score int
	}
	hits := make([]hit, 0, len(scores))
	for id, score := range scores {
		if node := lookup(id); node != nil {
			hits = append(hits, hit{node: node, score: score})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return graph.CompareNodes(a.node, b.node)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{
			NodeID:   h.node.ID,
			Score:    float64(h.score),
			NodeName: h.node.Name,
			Label:    string(h.node.Label),
		}
		if len(h.node.Paths) > 0 {
			results[i].Snippet = h.node.Paths[0]
		}
	}
	return results
}
