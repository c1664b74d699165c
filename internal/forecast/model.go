package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
)

// ErrIncompleteFeatures 결측 피처가 있는 벡터는 예측하지 않음
var ErrIncompleteFeatures = errors.New("feature vector has missing values")

// LinearModel 표준화된 피처 위의 릿지 회귀 모델 (macro 클러스터별 1개)
// 학습 후 불변이며 동시 Predict 호출에 안전하다
type LinearModel struct {
	ClusterID      int       `json:"cluster_id"`
	Features       []string  `json:"features"`
	Mean           []float64 `json:"mean"`
	Scale          []float64 `json:"scale"`
	Coef           []float64 `json:"coef"`
	Intercept      float64   `json:"intercept"`
	Lambda         float64   `json:"lambda"`
	TrainRows      int       `json:"train_rows"`
	TrainedThrough time.Time `json:"trained_through"`
}

// Predict implements contracts.Model
func (m *LinearModel) Predict(f contracts.FeatureVector) (float64, error) {
	x := f.Values()
	if len(x) != len(m.Coef) {
		return 0, fmt.Errorf("model expects %d features, got %d", len(m.Coef), len(x))
	}

	y := m.Intercept
	for j, v := range x {
		if contracts.IsMissing(v) {
			return 0, fmt.Errorf("%s: %w", m.Features[j], ErrIncompleteFeatures)
		}
		y += m.Coef[j] * (v - m.Mean[j]) / m.Scale[j]
	}
	return y, nil
}

// Validate 아티팩트 로딩 시 구조 검증
func (m *LinearModel) Validate() error {
	n := len(contracts.FeatureNames)
	if len(m.Features) != n || len(m.Mean) != n || len(m.Scale) != n || len(m.Coef) != n {
		return fmt.Errorf("cluster %d: expected %d features", m.ClusterID, n)
	}
	for j, name := range contracts.FeatureNames {
		if m.Features[j] != name {
			return fmt.Errorf("cluster %d: feature %d is %q, want %q", m.ClusterID, j, m.Features[j], name)
		}
		if !finite(m.Mean[j]) || !finite(m.Coef[j]) || !finite(m.Scale[j]) || m.Scale[j] <= 0 {
			return fmt.Errorf("cluster %d: invalid parameters for %s", m.ClusterID, name)
		}
	}
	if !finite(m.Intercept) {
		return fmt.Errorf("cluster %d: invalid intercept", m.ClusterID)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FitRidge 표준화 → 중심화된 타깃에 대해 (ZᵀZ + λI)β = Zᵀy 를 푼다
// 분산이 0인 피처는 scale=1 로 두어 기여도가 0이 된다
func FitRidge(X [][]float64, y []float64, lambda float64) (*LinearModel, error) {
	rows := len(X)
	if rows == 0 || rows != len(y) {
		return nil, fmt.Errorf("fit ridge: %d rows, %d targets", rows, len(y))
	}
	p := len(X[0])

	mean := make([]float64, p)
	scale := make([]float64, p)
	for _, row := range X {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(rows)
	}
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / float64(rows))
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	yMean := 0.0
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(rows)

	// 정규방정식 A = ZᵀZ + λI, b = Zᵀ(y - ȳ)
	A := make([][]float64, p)
	for i := range A {
		A[i] = make([]float64, p)
	}
	b := make([]float64, p)
	z := make([]float64, p)
	for r, row := range X {
		for j, v := range row {
			z[j] = (v - mean[j]) / scale[j]
		}
		yc := y[r] - yMean
		for i := 0; i < p; i++ {
			b[i] += z[i] * yc
			for j := i; j < p; j++ {
				A[i][j] += z[i] * z[j]
			}
		}
	}
	for i := 0; i < p; i++ {
		for j := 0; j < i; j++ {
			A[i][j] = A[j][i]
		}
		A[i][i] += lambda
	}

	coef, err := solve(A, b)
	if err != nil {
		return nil, fmt.Errorf("fit ridge: %w", err)
	}

	return &LinearModel{
		Features:  append([]string(nil), contracts.FeatureNames...),
		Mean:      mean,
		Scale:     scale,
		Coef:      coef,
		Intercept: yMean,
		Lambda:    lambda,
		TrainRows: rows,
	}, nil
}

// solve Gaussian elimination with partial pivoting; A and b are overwritten
func solve(A [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(A[r][col]) > math.Abs(A[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(A[pivot][col]) < 1e-12 {
			return nil, errors.New("singular system")
		}
		A[col], A[pivot] = A[pivot], A[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := A[r][col] / A[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				A[r][c] -= f * A[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= A[r][c] * x[c]
		}
		x[r] = sum / A[r][r]
	}
	return x, nil
}
