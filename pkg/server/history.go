package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/types"
)

const maxHistoryRange = 7 * 24 * time.Hour

func (s *Server) handleHistoryForecasts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start, end, err := parseTimeRange(r, time.Now())
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	runs := []types.ForecastRun{}
	if s.history != nil {
		got, err := s.history.GetForecastHistory(ctx, start, end)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to get forecast history", slog.Time("start", start), slog.Time("end", end), slog.Any("error", err))
			writeJSONError(w, "failed to get forecast history", http.StatusInternalServerError)
			return
		}
		if got != nil {
			runs = got
		}
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, runs)
}

func parseTimeRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		// Default to last 24 hours if not specified
		return now.Add(-24 * time.Hour), now, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > maxHistoryRange {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed 7 days")
	}

	return start, end, nil
}
