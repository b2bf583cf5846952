package search

import (
	"github.com/docuquery/policy-search/db"
	"github.com/docuquery/policy-search/domain"
)

// maximalMarginalRelevance greedily picks k hits that balance relevance to
// the query against similarity to already-selected hits. lambda 1.0 is pure
// relevance, lambda 0.0 is pure diversity. Candidates must carry vectors.
func maximalMarginalRelevance(queryVector []float32, candidates []domain.VectorHit, k int, lambda float64) []domain.VectorHit {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = db.CosineSimilarity(queryVector, c.Record.Vector)
	}

	selected := make([]domain.VectorHit, 0, k)
	picked := make([]bool, len(candidates))

	for len(selected) < k {
		bestIdx := -1
		bestScore := 0.0
		for i := range candidates {
			if picked[i] {
				continue
			}
			penalty := 0.0
			for _, s := range selected {
				if sim := db.CosineSimilarity(candidates[i].Record.Vector, s.Record.Vector); sim > penalty {
					penalty = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*penalty
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		picked[bestIdx] = true
		selected = append(selected, candidates[bestIdx])
	}
	return selected
}
