package contracts

import "time"

// FeatureNames fixes the order of FeatureVector.Values
// ⭐ SSOT: 모델 입력 순서는 여기서만 정의
var FeatureNames = []string{
	"ret_1", "ret_3", "ret_5", "ret_10",
	"vol_5", "vol_10", "range", "vol_z", "deliv_z",
}

// FeatureVector holds the predictive features of one (symbol, date).
// A field is Missing when there is not enough history to compute it.
type FeatureVector struct {
	Ret1   float64 `json:"ret_1"`
	Ret3   float64 `json:"ret_3"`
	Ret5   float64 `json:"ret_5"`
	Ret10  float64 `json:"ret_10"`
	Vol5   float64 `json:"vol_5"`
	Vol10  float64 `json:"vol_10"`
	Range  float64 `json:"range"`
	VolZ   float64 `json:"vol_z"`
	DelivZ float64 `json:"deliv_z"`
}

// Values returns the features in FeatureNames order
func (f FeatureVector) Values() []float64 {
	return []float64{f.Ret1, f.Ret3, f.Ret5, f.Ret10, f.Vol5, f.Vol10, f.Range, f.VolZ, f.DelivZ}
}

// Complete reports whether every feature is present
func (f FeatureVector) Complete() bool {
	for _, v := range f.Values() {
		if IsMissing(v) {
			return false
		}
	}
	return true
}

// FeatureRow is one row of the feature table: a segment label on a date,
// its regime tags and its features
type FeatureRow struct {
	Symbol   string        `json:"symbol"`
	Date     time.Time     `json:"date"`
	Close    float64       `json:"close"`
	AvgPrice float64       `json:"avg_price"`
	Regime   *int          `json:"regime,omitempty"`
	Macro    *int          `json:"macro,omitempty"`
	Features FeatureVector `json:"features"`
}
