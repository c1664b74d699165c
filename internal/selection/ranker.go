package selection

import (
	"github.com/wonny/quantmon/internal/contracts"
)

// TopK orders scored symbols by (score desc, symbol asc) and keeps the first k.
// The input slice is reordered.
func TopK(scored []contracts.ScoredSymbol, k int) []contracts.ScoredSymbol {
	contracts.SortScored(scored)
	if k < len(scored) {
		scored = scored[:k]
	}
	return append([]contracts.ScoredSymbol(nil), scored...)
}

// MeanScore is the cluster score: mean of its selected scores
func MeanScore(ranked []contracts.ScoredSymbol) float64 {
	if len(ranked) == 0 {
		return contracts.Missing
	}
	sum := 0.0
	for _, s := range ranked {
		sum += s.Score
	}
	return sum / float64(len(ranked))
}

// Champion picks the candidate with the highest mean score; ties go to the
// smallest cluster id. ok is false when there are no candidates.
// ⭐ SSOT: champion–challenger 판정은 여기서만
func Champion(candidates []contracts.ClusterCandidate) (contracts.ClusterCandidate, bool) {
	var best contracts.ClusterCandidate
	found := false
	for _, c := range candidates {
		if !found ||
			c.MeanScore > best.MeanScore ||
			(c.MeanScore == best.MeanScore && c.ClusterID < best.ClusterID) {
			best = c
			found = true
		}
	}
	return best, found
}
