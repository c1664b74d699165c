package selection

import (
	"time"

	"github.com/wonny/quantmon/internal/contracts"
)

// Snapshot returns the rows dated on the decision day with every feature present.
// An empty snapshot is fatal for the run.
// ⭐ SSOT: 결정일 스냅샷 필터는 여기서만
func Snapshot(rows []contracts.FeatureRow, decision time.Time) ([]contracts.FeatureRow, error) {
	var snap []contracts.FeatureRow
	for _, r := range rows {
		if contracts.SameDay(r.Date, decision) && r.Features.Complete() {
			snap = append(snap, r)
		}
	}
	if len(snap) == 0 {
		return nil, &contracts.NoSnapshotError{DecisionDate: contracts.Day(decision), TotalRows: len(rows)}
	}
	return snap, nil
}
