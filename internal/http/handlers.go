package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"costbook/internal/core"
	"costbook/internal/rates"
	"costbook/internal/storage"
)

type errorBody struct {
	Error string `json:"error"`
}

type rateURLBody struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encoding response failed", "error", err)
	}
}

// writeDomainError maps domain failures onto the API status codes: field
// validation lands on 422, a missing cost on 404, everything else on 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		slog.WarnContext(r.Context(), "Request rejected", "field", verr.Field, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "url", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
}

// parseYearMonth extracts year and month from query parameters.
// Returns current year/month as defaults if not provided or invalid.
func parseYearMonth(r *http.Request) (year, month int) {
	now := time.Now()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			month = m
		}
	}

	return year, month
}

// handleCosts routes the collection endpoints: add, period query, clear.
func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAddCost(w, r)
	case http.MethodGet:
		s.handleListCosts(w, r)
	case http.MethodDelete:
		s.handleClearCosts(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAddCost(w http.ResponseWriter, r *http.Request) {
	var draft core.Draft
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&draft); err != nil {
		badRequest(w, "malformed cost body")
		return
	}
	rec, err := s.store.Add(r.Context(), draft)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListCosts(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	records, err := s.store.ListByPeriod(r.Context(), year, month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []core.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleClearCosts(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCostByID routes the single-cost endpoints under /api/costs/{id}.
func (s *Server) handleCostByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/costs/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "cost not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.store.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPatch:
		var patch core.Patch
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&patch); err != nil {
			badRequest(w, "malformed patch body")
			return
		}
		rec, err := s.store.Update(r.Context(), id, patch)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		if err := s.store.Delete(r.Context(), id); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	year, month := parseYearMonth(r)
	currency := strings.TrimSpace(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = string(core.USD)
	}
	report, err := s.reports.Build(r.Context(), core.Period{Year: year, Month: month}, core.Currency(currency))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleRateURL reads and stores the configured rate feed locator. Storing
// an empty value clears the configuration.
func (s *Server) handleRateURL(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		value, err := s.store.Setting(r.Context(), rates.SettingKey)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rateURLBody{URL: value})
	case http.MethodPut:
		var body rateURLBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
			badRequest(w, "malformed settings body")
			return
		}
		if err := s.store.PutSetting(r.Context(), rates.SettingKey, body.URL); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
