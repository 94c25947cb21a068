package retrieval

import (
	"strings"

	"github.com/caldershaw/ragd/internal/model"
)

// rerankMMR reorders snippets by maximal marginal relevance: each pick
// balances similarity to the query against redundancy with snippets already
// picked. lambda 1.0 is pure relevance, 0.0 pure diversity.
func rerankMMR(queryTexts []string, snippets []model.RetrievedSnippet, lambda float64) []model.RetrievedSnippet {
	if lambda <= 0 || lambda > 1 {
		lambda = 0.5
	}
	queryTokens := tokenSet(strings.Join(queryTexts, " "))
	docTokens := make([]map[string]struct{}, len(snippets))
	for i, sn := range snippets {
		docTokens[i] = tokenSet(sn.Content)
	}

	picked := make([]model.RetrievedSnippet, 0, len(snippets))
	pickedTokens := make([]map[string]struct{}, 0, len(snippets))
	remaining := make([]int, len(snippets))
	for i := range remaining {
		remaining[i] = i
	}
	for len(remaining) > 0 {
		bestPos := 0
		bestScore := -1.0
		for pos, idx := range remaining {
			relevance := jaccard(queryTokens, docTokens[idx])
			redundancy := 0.0
			for _, pt := range pickedTokens {
				if sim := jaccard(docTokens[idx], pt); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}
		idx := remaining[bestPos]
		picked = append(picked, snippets[idx])
		pickedTokens = append(pickedTokens, docTokens[idx])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return picked
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]{}")
		if len(tok) < 2 {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
