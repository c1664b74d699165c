package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/quantmon/internal/contracts"
)

// ManifestFile 모델 디렉터리의 목차 파일 이름
const ManifestFile = "manifest.yaml"

// Entry 레지스트리 한 항목 (macro 클러스터 id → 모델)
type Entry struct {
	ClusterID int
	Model     contracts.Model
}

// validatable 로딩 시 자체 검증이 가능한 모델
type validatable interface {
	Validate() error
}

// Registry 클러스터별 모델 집합. 생성 시 한 번 검증되고 이후 읽기 전용
// ⭐ SSOT: 실행 중 사용되는 모델 목록은 여기서만
type Registry struct {
	entries []Entry
}

// NewRegistry 명시적 항목으로 레지스트리 생성 (중복 id, nil 모델, 검증 실패는 에러)
// 비어 있는 레지스트리는 허용되며 선정 단계에서 치명적 오류로 처리된다
func NewRegistry(entries ...Entry) (*Registry, error) {
	seen := make(map[int]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Model == nil {
			return nil, fmt.Errorf("cluster %d: nil model", e.ClusterID)
		}
		if seen[e.ClusterID] {
			return nil, fmt.Errorf("cluster %d: duplicate registry entry", e.ClusterID)
		}
		if v, ok := e.Model.(validatable); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("cluster %d: %w", e.ClusterID, err)
			}
		}
		seen[e.ClusterID] = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return &Registry{entries: out}, nil
}

// Len 등록된 모델 수
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries 클러스터 id 오름차순 항목 (복사본)
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	return append([]Entry(nil), r.entries...)
}

// IDs 클러스터 id 목록
func (r *Registry) IDs() []int {
	ids := make([]int, 0, r.Len())
	for _, e := range r.Entries() {
		ids = append(ids, e.ClusterID)
	}
	return ids
}

// Manifest 모델 디렉터리 목차
type Manifest struct {
	StrategyID   string          `yaml:"strategy_id"`
	ConfigHash   string          `yaml:"config_hash"`
	DecisionDate string          `yaml:"decision_date"`
	TrainedAt    time.Time       `yaml:"trained_at"`
	Models       []ManifestEntry `yaml:"models"`
}

// ManifestEntry 아티팩트 한 개
type ManifestEntry struct {
	ClusterID int    `yaml:"cluster_id"`
	Path      string `yaml:"path"`
	TrainRows int    `yaml:"train_rows"`
}

// LoadManifest 목차를 읽고 모든 아티팩트를 로딩/검증해 레지스트리를 만든다
// 목차가 없으면 빈 레지스트리를 돌려준다
func LoadManifest(dir string) (*Registry, *Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		reg, _ := NewRegistry()
		return reg, &Manifest{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}

	entries := make([]Entry, 0, len(m.Models))
	for _, me := range m.Models {
		path := me.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		model, err := LoadArtifact(path)
		if err != nil {
			return nil, nil, err
		}
		if model.ClusterID != me.ClusterID {
			return nil, nil, fmt.Errorf("artifact %s: cluster id %d does not match manifest %d",
				me.Path, model.ClusterID, me.ClusterID)
		}
		entries = append(entries, Entry{ClusterID: me.ClusterID, Model: model})
	}

	reg, err := NewRegistry(entries...)
	if err != nil {
		return nil, nil, err
	}
	return reg, &m, nil
}

// LoadArtifact 모델 JSON 한 개 로딩
func LoadArtifact(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var model LinearModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", filepath.Base(path), err)
	}
	return &model, nil
}

// ArtifactName macro_<id>.json
func ArtifactName(clusterID int) string {
	return fmt.Sprintf("macro_%d.json", clusterID)
}

// SaveArtifacts 모델 JSON 들과 목차를 기록한다. 목차는 마지막에 교체되므로
// 중간 실패 시 이전 목차가 그대로 유효하다
func SaveArtifacts(dir string, models []*LinearModel, meta Manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	meta.Models = nil
	for _, m := range models {
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal cluster %d: %w", m.ClusterID, err)
		}
		name := ArtifactName(m.ClusterID)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		meta.Models = append(meta.Models, ManifestEntry{ClusterID: m.ClusterID, Path: name, TrainRows: m.TrainRows})
	}

	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := filepath.Join(dir, "."+ManifestFile)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dir, ManifestFile))
}

// RegistryFromModels 학습 결과를 바로 레지스트리로
func RegistryFromModels(models []*LinearModel) (*Registry, error) {
	entries := make([]Entry, len(models))
	for i, m := range models {
		entries[i] = Entry{ClusterID: m.ClusterID, Model: m}
	}
	return NewRegistry(entries...)
}
