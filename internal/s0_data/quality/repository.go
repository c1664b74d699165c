package quality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/quantmon/internal/contracts"
)

// StoredReport is a cleaning report with its run identity
type StoredReport struct {
	RunID        string                   `json:"run_id"`
	DecisionDate time.Time                `json:"decision_date"`
	Report       contracts.CleaningReport `json:"report"`
}

// ReportStore persists cleaning reports
type ReportStore interface {
	SaveReport(ctx context.Context, r *StoredReport) error
	LatestReport(ctx context.Context) (*StoredReport, error)
}

// Repository handles cleaning report persistence in Postgres
// ⭐ SSOT: S1 정제 리포트 저장/조회
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveReport upserts a cleaning report keyed by run id
func (r *Repository) SaveReport(ctx context.Context, sr *StoredReport) error {
	unsplit, err := json.Marshal(sr.Report.UnsplitEvents)
	if err != nil {
		return fmt.Errorf("marshal unsplit events: %w", err)
	}

	query := `
		INSERT INTO audit.cleaning_reports (
			run_id, decision_date, symbols_in, segments_out, bars_in, bars_out,
			bad_ticks_dropped, corporate_events, symbols_split, unsplit_events
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO UPDATE SET
			decision_date = EXCLUDED.decision_date,
			symbols_in = EXCLUDED.symbols_in,
			segments_out = EXCLUDED.segments_out,
			bars_in = EXCLUDED.bars_in,
			bars_out = EXCLUDED.bars_out,
			bad_ticks_dropped = EXCLUDED.bad_ticks_dropped,
			corporate_events = EXCLUDED.corporate_events,
			symbols_split = EXCLUDED.symbols_split,
			unsplit_events = EXCLUDED.unsplit_events,
			created_at = NOW()
	`

	rep := sr.Report
	_, err = r.pool.Exec(ctx, query,
		sr.RunID,
		sr.DecisionDate,
		rep.SymbolsIn,
		rep.SegmentsOut,
		rep.BarsIn,
		rep.BarsOut,
		rep.BadTicksDropped,
		rep.CorporateEvents,
		rep.SymbolsSplit,
		unsplit,
	)
	if err != nil {
		return fmt.Errorf("save cleaning report: %w", err)
	}
	return nil
}

// LatestReport retrieves the most recently written report
func (r *Repository) LatestReport(ctx context.Context) (*StoredReport, error) {
	query := `
		SELECT run_id, decision_date, symbols_in, segments_out, bars_in, bars_out,
		       bad_ticks_dropped, corporate_events, symbols_split, unsplit_events
		FROM audit.cleaning_reports
		ORDER BY created_at DESC
		LIMIT 1
	`

	var sr StoredReport
	var unsplit []byte
	rep := &sr.Report
	err := r.pool.QueryRow(ctx, query).Scan(
		&sr.RunID,
		&sr.DecisionDate,
		&rep.SymbolsIn,
		&rep.SegmentsOut,
		&rep.BarsIn,
		&rep.BarsOut,
		&rep.BadTicksDropped,
		&rep.CorporateEvents,
		&rep.SymbolsSplit,
		&unsplit,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest cleaning report: %w", err)
	}

	if err := json.Unmarshal(unsplit, &rep.UnsplitEvents); err != nil {
		return nil, fmt.Errorf("unmarshal unsplit events: %w", err)
	}
	return &sr, nil
}

// FileReportStore keeps reports as JSON files under a directory
type FileReportStore struct {
	dir string
}

// NewFileReportStore creates a store writing cleaning_report_<run>.json files
func NewFileReportStore(dir string) *FileReportStore {
	return &FileReportStore{dir: dir}
}

const reportPrefix = "cleaning_report_"

// SaveReport writes the report as indented JSON
func (s *FileReportStore) SaveReport(_ context.Context, sr *StoredReport) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(sr, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(s.dir, reportPrefix+sr.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// LatestReport returns the report with the greatest run id.
// Run ids embed a timestamp, so lexical order is chronological.
func (s *FileReportStore) LatestReport(_ context.Context) (*StoredReport, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), reportPrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, contracts.ErrNotFound
	}
	sort.Strings(names)

	data, err := os.ReadFile(filepath.Join(s.dir, names[len(names)-1]))
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var sr StoredReport
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &sr, nil
}
