package contracts

import (
	"sort"
	"time"
)

// ScoredSymbol is one model prediction on the decision-date snapshot
type ScoredSymbol struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

// SortScored orders by score desc, then symbol asc
func SortScored(s []ScoredSymbol) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].Symbol < s[j].Symbol
	})
}

// ClusterCandidate is one cluster's top-K proposal
// ⭐ SSOT: 클러스터별 후보 (champion–challenger 비교 단위)
type ClusterCandidate struct {
	ClusterID int            `json:"cluster_id"`
	Ranked    []ScoredSymbol `json:"ranked"`
	MeanScore float64        `json:"mean_score"`
}

// ClusterFailure records a cluster skipped during selection
type ClusterFailure struct {
	ClusterID int    `json:"cluster_id"`
	Reason    string `json:"reason"`
}

// TradeRow is one line of the trade sheet
type TradeRow struct {
	Symbol    string    `json:"symbol"`
	Score     float64   `json:"score"`
	Weight    float64   `json:"weight"`
	EntryDate time.Time `json:"entry_date"`
	ClusterID int       `json:"cluster_id"`
}

// TradeSheet is the final output of a run
// ⭐ SSOT: S5 → 저장/API 로 전달되는 최종 결과
type TradeSheet struct {
	DecisionDate time.Time          `json:"decision_date"`
	EntryDate    time.Time          `json:"entry_date"`
	ClusterID    int                `json:"cluster_id"`
	ConfigHash   string             `json:"config_hash,omitempty"`
	Rows         []TradeRow         `json:"rows"`
	Candidates   []ClusterCandidate `json:"candidates,omitempty"`
	Skipped      []ClusterFailure   `json:"skipped,omitempty"`
}

// Symbols returns the symbols on the sheet in order
func (t *TradeSheet) Symbols() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Symbol
	}
	return out
}

// TotalWeight sums row weights
func (t *TradeSheet) TotalWeight() float64 {
	total := 0.0
	for _, r := range t.Rows {
		total += r.Weight
	}
	return total
}
