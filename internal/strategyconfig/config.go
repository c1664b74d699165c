package strategyconfig

// Config는 정제/학습/선정 파이프라인의 전체 정책 설정
// 모든 임계값은 여기서 주입되며 코어 로직에 하드코딩하지 않는다
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Integrity Integrity `yaml:"integrity" json:"integrity"`
	Features  Features  `yaml:"features" json:"features"`
	Training  Training  `yaml:"training" json:"training"`
	Selection Selection `yaml:"selection" json:"selection"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id" validate:"required"`
	Version    string `yaml:"version" json:"version" default:"v1"`
	Timezone   string `yaml:"timezone" json:"timezone" default:"Asia/Kolkata"`
}

// Integrity S1: 기업행위/배드틱 판정 임계값
type Integrity struct {
	// |ret1| 가 이 값을 넘으면 비정상 점프
	AbnormalRet1 float64 `yaml:"abnormal_ret1" json:"abnormal_ret1" default:"0.40" validate:"gt=0"`
	// |ret2| 가 이 값을 넘으면 비정상 점프
	AbnormalRet2 float64 `yaml:"abnormal_ret2" json:"abnormal_ret2" default:"0.60" validate:"gt=0"`
	// 점프 이후 종가가 기준가 대비 이 범위 안에 머물러야 안정
	StabilityBand   float64 `yaml:"stability_band" json:"stability_band" default:"0.10" validate:"gt=0,lt=1"`
	StabilityWindow int     `yaml:"stability_window" json:"stability_window" default:"5" validate:"gte=1"`

	BadTickSpike     float64 `yaml:"bad_tick_spike" json:"bad_tick_spike" default:"0.80" validate:"gt=0"`
	BadTickReversion float64 `yaml:"bad_tick_reversion" json:"bad_tick_reversion" default:"0.10" validate:"gt=0"`

	// 이벤트 전후로 버리는 봉 수 (양쪽)
	SegmentGap       int      `yaml:"segment_gap" json:"segment_gap" default:"10" validate:"gte=0"`
	ExcludeFromSplit []string `yaml:"exclude_from_split" json:"exclude_from_split" default:"[\"BRITANNIA\"]" validate:"dive,required"`
}

// Features S3: 롤링 윈도우
type Features struct {
	ZScoreWindow int `yaml:"zscore_window" json:"zscore_window" default:"20" validate:"gte=2"`
}

// Training S4: 타깃/학습 파라미터
type Training struct {
	HoldingDays  int     `yaml:"holding_days" json:"holding_days" default:"5" validate:"gte=1"`
	MinTrainRows int     `yaml:"min_train_rows" json:"min_train_rows" default:"3000" validate:"gte=1"`
	RidgeLambda  float64 `yaml:"ridge_lambda" json:"ridge_lambda" default:"1.0" validate:"gte=0"`
}

// Selection S5: champion–challenger 파라미터
type Selection struct {
	TopK    int `yaml:"top_k" json:"top_k" default:"5" validate:"gte=1"`
	Workers int `yaml:"workers" json:"workers" default:"4" validate:"gte=1,lte=64"`
}
