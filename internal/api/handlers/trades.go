package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/quantmon/internal/contracts"
	"github.com/wonny/quantmon/pkg/logger"
)

// TradeHandler serves stored trade sheets
type TradeHandler struct {
	sheets contracts.TradeSheetStore
	logger *logger.Logger
}

// NewTradeHandler creates a new trade sheet handler
func NewTradeHandler(sheets contracts.TradeSheetStore, log *logger.Logger) *TradeHandler {
	return &TradeHandler{sheets: sheets, logger: log}
}

// GetLatest returns the most recent trade sheet
// GET /api/trades/latest
func (h *TradeHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.sheets.LatestTradeSheet(r.Context())
	h.respondSheet(w, sheet, err)
}

// GetByEntryDate returns the trade sheet of one entry date
// GET /api/trades/{entry_date}
func (h *TradeHandler) GetByEntryDate(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["entry_date"]
	entry, err := time.Parse(contracts.DateLayout, raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "entry_date must be YYYY-MM-DD")
		return
	}

	sheet, err := h.sheets.GetTradeSheet(r.Context(), entry)
	h.respondSheet(w, sheet, err)
}

func (h *TradeHandler) respondSheet(w http.ResponseWriter, sheet *contracts.TradeSheet, err error) {
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Trade sheet not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get trade sheet")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve trade sheet")
		return
	}
	respondJSON(w, http.StatusOK, sheet)
}
