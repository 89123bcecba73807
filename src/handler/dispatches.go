package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"alertbridge/src/archive"
	"alertbridge/src/model"
)

type ArchiveSearcher interface {
	Search(ctx context.Context, options archive.SearchOptions) ([]model.DispatchArchive, error)
}

// SearchDispatchesHandler returns a handler that queries the archive
// mirror with filters the Redis ledger cannot serve (symbol, status,
// completion windows). Only mounted when the archive is enabled.
func SearchDispatchesHandler(repo ArchiveSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}

		var symbol *string
		if symbolParam := r.URL.Query().Get("symbol"); symbolParam != "" {
			symbol = &symbolParam
		}

		var status *string
		if statusParam := r.URL.Query().Get("status"); statusParam != "" {
			status = &statusParam
		}

		var completedFrom, completedTo *time.Time
		if fromParam := r.URL.Query().Get("completedFrom"); fromParam != "" {
			parsed, err := time.Parse(time.RFC3339, fromParam)
			if err != nil {
				http.Error(w, "invalid completedFrom", http.StatusBadRequest)
				return
			}
			completedFrom = &parsed
		}

		if toParam := r.URL.Query().Get("completedTo"); toParam != "" {
			parsed, err := time.Parse(time.RFC3339, toParam)
			if err != nil {
				http.Error(w, "invalid completedTo", http.StatusBadRequest)
				return
			}
			completedTo = &parsed
		}

		page := 1
		if pageParam := r.URL.Query().Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 20
		if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		offset := (page - 1) * pageSize

		rows, err := repo.Search(r.Context(), archive.SearchOptions{
			UserID:          userID,
			Symbol:          symbol,
			Status:          status,
			CompletedAfter:  completedFrom,
			CompletedBefore: completedTo,
			Limit:           pageSize,
			Offset:          offset,
		})
		if err != nil {
			logger.WithError(err).Error("failed to search dispatch archive")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []model.DispatchArchive{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rows); err != nil {
			logger.WithError(err).Error("failed to encode dispatch search response")
		}
	}
}
