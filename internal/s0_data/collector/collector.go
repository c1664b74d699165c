package collector

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/s0_data"
	"github.com/wonny/quantmon/pkg/config"
	"github.com/wonny/quantmon/pkg/httputil"
	"github.com/wonny/quantmon/pkg/logger"
	"github.com/wonny/quantmon/pkg/metrics"
)

// ErrNoBhavcopy means the exchange published nothing for the date (holiday, weekend)
var ErrNoBhavcopy = errors.New("no bhavcopy published")

// reportName is the NSE daily report this collector downloads
const reportName = "Full Bhavcopy and Security Deliverable data"

// Download outcomes recorded in metrics
const (
	StatusOK         = "ok"
	StatusNotTrading = "not_trading"
	StatusFailed     = "failed"
)

// Collector downloads daily bhavcopy archives and merges them into the master CSV
// ⭐ SSOT: bhavcopy 수집/병합은 이 패키지에서만
type Collector struct {
	client     *httputil.Client
	baseURL    string
	archiveURL string
	liveDir    string
	master     *s0_data.CSVStore
	metrics    *metrics.Recorder
	logger     *logger.Logger

	warmOnce sync.Once
}

// NewCollector creates a new Collector instance
func NewCollector(client *httputil.Client, cfg *config.Config, master *s0_data.CSVStore, log *logger.Logger) *Collector {
	client.
		WithHeader("User-Agent", "Mozilla/5.0").
		WithHeader("Accept-Language", "en-US,en;q=0.9").
		WithHeader("Referer", strings.TrimRight(cfg.NSE.BaseURL, "/")+"/all-reports")

	return &Collector{
		client:     client,
		baseURL:    strings.TrimRight(cfg.NSE.BaseURL, "/"),
		archiveURL: strings.TrimRight(cfg.NSE.ArchiveURL, "/"),
		liveDir:    cfg.Paths.LiveDir,
		master:     master,
		logger:     log.WithField("module", "collector"),
	}
}

// WithMetrics attaches a metrics recorder
func (c *Collector) WithMetrics(m *metrics.Recorder) *Collector {
	c.metrics = m
	return c
}

// ReportURL builds the reports API URL for one date
func (c *Collector) ReportURL(date time.Time) string {
	archives := fmt.Sprintf(
		`[{"name":%q,"type":"daily-reports","category":"capital-market","section":"equities"}]`,
		reportName,
	)
	q := url.Values{}
	q.Set("archives", archives)
	q.Set("date", date.Format(s0_data.NSEDateLayout))
	q.Set("type", "equities")
	q.Set("mode", "single")
	return c.baseURL + "/api/reports?" + q.Encode()
}

// ArchiveCSVURL is the static archive location of the same report
func (c *Collector) ArchiveCSVURL(date time.Time) string {
	return fmt.Sprintf("%s/products/content/sec_bhavdata_full_%s.csv", c.archiveURL, date.Format("02012006"))
}

// warmUp fetches the landing page once so the session cookie is set
func (c *Collector) warmUp(ctx context.Context) {
	c.warmOnce.Do(func() {
		resp, err := c.client.Get(ctx, c.baseURL+"/")
		if err != nil {
			c.logger.WithError(err).Debug("Landing page warm-up failed")
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	})
}

// Download fetches the bhavcopy for one date and stores it under the live dir.
// It returns ErrNoBhavcopy when neither source has the report.
func (c *Collector) Download(ctx context.Context, date time.Time) (string, error) {
	c.warmUp(ctx)
	date = contracts.Day(date)
	prefix := date.Format(s0_data.NSEDateLayout)

	body, name, err := c.fetch(ctx, c.ReportURL(date))
	if err != nil || len(body) == 0 {
		if err != nil {
			c.logger.WithError(err).WithField("date", prefix).Debug("Reports API miss, trying archive")
		}
		body, _, err = c.fetch(ctx, c.ArchiveCSVURL(date))
		name = fmt.Sprintf("sec_bhavdata_full_%s.csv", date.Format("02012006"))
	}

	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusForbidden) {
			c.record(StatusNotTrading)
			return "", fmt.Errorf("%s: %w", prefix, ErrNoBhavcopy)
		}
		c.record(StatusFailed)
		return "", fmt.Errorf("download %s: %w", prefix, err)
	}
	if len(body) == 0 {
		c.record(StatusNotTrading)
		return "", fmt.Errorf("%s: %w", prefix, ErrNoBhavcopy)
	}

	if err := os.MkdirAll(c.liveDir, 0o755); err != nil {
		return "", fmt.Errorf("create live dir: %w", err)
	}
	path := filepath.Join(c.liveDir, prefix+"_"+name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}

	c.record(StatusOK)
	c.logger.WithFields(map[string]interface{}{
		"date":  prefix,
		"path":  path,
		"bytes": len(body),
	}).Info("Bhavcopy downloaded")

	return path, nil
}

// fetch returns the body and the attachment file name of a 2xx response
func (c *Collector) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	resp, err := c.client.Get(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, "", &httputil.StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	name := "bhav.zip"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}
	return body, name, nil
}

func (c *Collector) record(status string) {
	if c.metrics != nil {
		c.metrics.RecordDownload(status)
	}
}

// CollectResult summarises one Collect call
type CollectResult struct {
	Downloaded []string
	NoData     []time.Time
	Failed     map[string]error
	BarsAdded  int
}

// Collect downloads every calendar day in [from, to] and merges the live dir into the master
func (c *Collector) Collect(ctx context.Context, from, to time.Time) (*CollectResult, error) {
	from, to = contracts.Day(from), contracts.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s after %s",
			from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))
	}

	c.logger.WithFields(map[string]interface{}{
		"from": from.Format(contracts.DateLayout),
		"to":   to.Format(contracts.DateLayout),
	}).Info("Starting bhavcopy collection")

	result := &CollectResult{Failed: make(map[string]error)}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		path, err := c.Download(ctx, d)
		switch {
		case err == nil:
			result.Downloaded = append(result.Downloaded, path)
		case errors.Is(err, ErrNoBhavcopy):
			result.NoData = append(result.NoData, d)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return result, err
		default:
			c.logger.WithError(err).Warn("Bhavcopy download failed")
			result.Failed[d.Format(contracts.DateLayout)] = err
		}
	}

	fresh, err := c.LoadLiveDir()
	if err != nil {
		return result, err
	}

	added, err := c.MergeIntoMaster(ctx, fresh)
	if err != nil {
		return result, err
	}
	result.BarsAdded = added

	c.logger.WithFields(map[string]interface{}{
		"downloaded": len(result.Downloaded),
		"no_data":    len(result.NoData),
		"failed":     len(result.Failed),
		"bars_added": added,
	}).Info("Bhavcopy collection completed")

	return result, nil
}

// LoadLiveDir parses every archive in the live dir in file-name order
func (c *Collector) LoadLiveDir() ([]contracts.Bar, error) {
	entries, err := os.ReadDir(c.liveDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read live dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".zip" || ext == ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var bars []contracts.Bar
	for _, name := range names {
		got, err := ExtractArchive(filepath.Join(c.liveDir, name))
		if err != nil {
			// 손상된 아카이브는 건너뜀 (다음 수집에서 재다운로드)
			c.logger.WithError(err).WithField("file", name).Warn("Skipping unreadable archive")
			continue
		}
		bars = append(bars, got...)
	}
	return bars, nil
}

// ExtractArchive parses the first CSV inside a zip, or a bare CSV file
func ExtractArchive(path string) ([]contracts.Bar, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return s0_data.ParseMaster(f, filepath.Base(path))
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in %s: %w", f.Name, path, err)
		}
		defer rc.Close()
		return s0_data.ParseMaster(rc, f.Name)
	}

	return nil, fmt.Errorf("archive %s: no csv entry", path)
}

// MergeIntoMaster appends fresh bars to the master CSV.
// Only symbols already in the master (the F&O universe) are kept unless the
// master does not exist yet; (symbol, date) keys already present are dropped.
// Returns the number of bars added.
func (c *Collector) MergeIntoMaster(ctx context.Context, fresh []contracts.Bar) (int, error) {
	if len(fresh) == 0 {
		return 0, nil
	}

	existing, err := c.master.LoadBars(ctx)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("load master: %w", err)
	}

	merged, added := MergeBars(existing, fresh, len(existing) > 0)
	if added == 0 {
		c.logger.Info("Master CSV already up to date")
		return 0, nil
	}

	if err := c.master.SaveMaster(merged); err != nil {
		return 0, err
	}
	return added, nil
}

// MergeBars returns existing+fresh sorted by (symbol, date) without duplicate keys.
// When restrictUniverse is set, fresh symbols not in existing are ignored.
func MergeBars(existing, fresh []contracts.Bar, restrictUniverse bool) ([]contracts.Bar, int) {
	type key struct {
		symbol string
		date   string
	}

	universe := make(map[string]bool)
	seen := make(map[key]bool, len(existing)+len(fresh))
	out := make([]contracts.Bar, 0, len(existing)+len(fresh))

	for _, b := range existing {
		universe[b.Symbol] = true
		k := key{b.Symbol, b.Date.Format(contracts.DateLayout)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, b)
	}

	added := 0
	for _, b := range fresh {
		if restrictUniverse && !universe[b.Symbol] {
			continue
		}
		k := key{b.Symbol, b.Date.Format(contracts.DateLayout)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, b)
		added++
	}

	s0_data.SortBars(out)
	return out, added
}

// MasterRange reports the first and last date of the master file
func (c *Collector) MasterRange(ctx context.Context) (time.Time, time.Time, error) {
	return c.master.DateRange(ctx)
}
