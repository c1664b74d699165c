package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 리포트, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4 → S5 → S6
//   Bars  Integrity  Regime  Features  Training  Selection  Persist

// Stage represents a pipeline stage
type Stage string

const (
	// StageBars S0: 원천 일봉 로드
	// 위치: internal/s0_data/
	StageBars Stage = "S0_BARS"

	// StageIntegrity S1: 기업행위/배드틱 정제 및 세그먼트 분리
	// 위치: internal/s0_data/quality/
	StageIntegrity Stage = "S1_INTEGRITY"

	// StageRegime S2: 레짐/매크로 클러스터 태깅
	// 위치: internal/regime/
	StageRegime Stage = "S2_REGIME"

	// StageFeatures S3: 롤링 피처 계산
	// 위치: internal/s2_signals/
	StageFeatures Stage = "S3_FEATURES"

	// StageTraining S4: 클러스터별 모델 학습 (선택)
	// 위치: internal/forecast/
	StageTraining Stage = "S4_TRAINING"

	// StageSelection S5: champion–challenger 선정
	// 위치: internal/selection/
	StageSelection Stage = "S5_SELECTION"

	// StagePersist S6: 트레이드 시트 저장
	// 위치: internal/selection/ (store)
	StagePersist Stage = "S6_PERSIST"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	if len(s) >= 2 && s[0] == 'S' && s[1] >= '0' && s[1] <= '9' {
		return string(s[:2])
	}
	return "UNKNOWN"
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageBars,
		StageIntegrity,
		StageRegime,
		StageFeatures,
		StageTraining,
		StageSelection,
		StagePersist,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}
