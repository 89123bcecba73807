package handler

import (
	"context"
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"alertbridge/src/model"
)

type alertDispatcher interface {
	Dispatch(ctx context.Context, alert model.IncomingAlert) *model.DispatchRecord
}

// TradingViewWebhookHandler returns the handler for incoming
// TradingView alerts. The response always carries the full dispatch
// record so the alert author can see the outcome without polling the
// history endpoint.
func TradingViewWebhookHandler(d alertDispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var alert model.IncomingAlert
		if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
			logger.WithError(err).Warn("Unreadable webhook payload")
			http.Error(w, "invalid JSON payload", http.StatusBadRequest)
			return
		}

		record := d.Dispatch(r.Context(), alert)

		status := http.StatusOK
		if record.Status == model.DispatchStatusRejected && record.ErrorDetail == model.ReasonMalformedPayload {
			status = http.StatusBadRequest
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(record); err != nil {
			logger.WithError(err).Error("failed to encode dispatch response")
		}
	}
}
