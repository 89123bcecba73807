package dispatcher

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"alertbridge/src/model"
)

// Reconcile converts every orphaned pre-submission intent into a
// terminal exchange_error record. Orphans exist only when a previous
// process died between writing the intent and appending the outcome;
// the order may or may not have reached the exchange, so the one safe
// move is to surface the interruption and let the user check the
// exchange. Orders are never resubmitted from an intent.
func (d *Dispatcher) Reconcile(ctx context.Context) error {
	intents, err := d.ledger.ListIntents(ctx)
	if err != nil {
		return err
	}
	if len(intents) == 0 {
		return nil
	}

	logger.WithField("count", len(intents)).Warn("Reconciling interrupted dispatches")

	for i := range intents {
		record := intents[i]
		record.Status = model.DispatchStatusExchangeError
		record.ErrorDetail = model.ReasonInterruptedShutdown
		record.CompletedAt = d.now().UTC()
		if record.DecidedAt.IsZero() {
			record.DecidedAt = record.CompletedAt
		}

		d.append(&record)

		logger.WithFields(logger.Fields{
			"dispatch_id": record.ID,
			"user_id":     record.UserID,
		}).Warn("Interrupted dispatch recorded as exchange_error")
	}

	return nil
}
