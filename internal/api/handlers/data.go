package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/internal/s0_data/quality"
	"github.com/wonny/quantmon/pkg/logger"
)

// RangeSource reports the first and last bar date of a bar store
type RangeSource interface {
	DateRange(ctx context.Context) (time.Time, time.Time, error)
}

// DataHandler handles data-related API endpoints
// ⭐ SSOT: 데이터 API 핸들러는 이 구조체에서만
type DataHandler struct {
	bars    RangeSource
	reports quality.ReportStore
	logger  *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(bars RangeSource, reports quality.ReportStore, log *logger.Logger) *DataHandler {
	return &DataHandler{bars: bars, reports: reports, logger: log}
}

// DataRange is the response of GET /api/data/range
type DataRange struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// GetRange returns the date span of the bar store
// GET /api/data/range
func (h *DataHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	first, last, err := h.bars.DateRange(r.Context())
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No bars stored")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get bar date range")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve date range")
		return
	}

	respondJSON(w, http.StatusOK, DataRange{
		First: first.Format(contracts.DateLayout),
		Last:  last.Format(contracts.DateLayout),
	})
}

// GetCleaning returns the latest cleaning report
// GET /api/cleaning/latest
func (h *DataHandler) GetCleaning(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.LatestReport(r.Context())
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No cleaning report stored")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get cleaning report")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve cleaning report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
