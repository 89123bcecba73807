package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"alertbridge/src/model"
)

type historyLister interface {
	ListByUser(ctx context.Context, userID string, limit int, before time.Time) ([]model.DispatchRecord, error)
}

// DispatchHistoryHandler returns a handler that lists a user's
// dispatch records from the ledger, newest first. Supports limit and
// an RFC3339 "before" cursor for pagination.
func DispatchHistoryHandler(ledger historyLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}

		limit := 0
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		var before time.Time
		if beforeParam := r.URL.Query().Get("before"); beforeParam != "" {
			parsed, err := time.Parse(time.RFC3339, beforeParam)
			if err != nil {
				http.Error(w, "invalid before", http.StatusBadRequest)
				return
			}
			before = parsed
		}

		records, err := ledger.ListByUser(r.Context(), userID, limit, before)
		if err != nil {
			logger.WithError(err).Error("failed to list dispatch history")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []model.DispatchRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			logger.WithError(err).Error("failed to encode dispatch history response")
		}
	}
}
