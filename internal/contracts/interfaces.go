package contracts

import (
	"context"
	"time"
)

// BarStore supplies raw bars (S0)
// ⭐ SSOT: S0 원천 데이터 인터페이스
type BarStore interface {
	LoadBars(ctx context.Context) ([]Bar, error)
}

// Model scores one feature vector. Implementations are immutable after
// loading and safe for concurrent use.
type Model interface {
	Predict(f FeatureVector) (float64, error)
}

// TradeSheetStore persists and serves trade sheets
// ⭐ SSOT: 트레이드 시트 저장소 인터페이스
type TradeSheetStore interface {
	SaveTradeSheet(ctx context.Context, sheet *TradeSheet) error
	GetTradeSheet(ctx context.Context, entryDate time.Time) (*TradeSheet, error)
	LatestTradeSheet(ctx context.Context) (*TradeSheet, error)
}
