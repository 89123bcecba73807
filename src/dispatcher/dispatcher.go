package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"alertbridge/src/gateway"
	"alertbridge/src/model"
	"alertbridge/src/security"
	"alertbridge/src/store"
)

// ConfigStore is the read side of the configuration store the
// dispatcher depends on.
type ConfigStore interface {
	GetAlertConfig(ctx context.Context, userID, name string) (*model.AlertConfig, error)
	GetCredential(ctx context.Context, userID, exchangeID string) (*model.ExchangeCredential, error)
}

// Locker serializes dispatches per (user, configuration).
type Locker interface {
	Acquire(ctx context.Context, userID, configName string, lease, wait time.Duration) (string, error)
	Release(ctx context.Context, userID, configName, token string) error
}

// Ledger records terminal outcomes and pre-submission intents.
type Ledger interface {
	Append(ctx context.Context, record *model.DispatchRecord) error
	WriteIntent(ctx context.Context, record *model.DispatchRecord) error
	ClearIntent(ctx context.Context, id string) error
	ListIntents(ctx context.Context) ([]model.DispatchRecord, error)
}

// Decrypter opens sealed credential fields.
type Decrypter interface {
	DecryptString(ciphertext, nonce string) (string, error)
}

// Dispatcher runs one alert from webhook payload to terminal ledger
// record. Every alert that enters Dispatch leaves it with exactly one
// recorded outcome; nothing is silently dropped.
type Dispatcher struct {
	store    ConfigStore
	locker   Locker
	ledger   Ledger
	vault    Decrypter
	gateways gateway.Factory
	config   Config

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error

	wg sync.WaitGroup
}

func New(configStore ConfigStore, locker Locker, ledger Ledger, vault *security.Vault, gateways gateway.Factory) *Dispatcher {
	return &Dispatcher{
		store:    configStore,
		locker:   locker,
		ledger:   ledger,
		vault:    vault,
		gateways: gateways,
		config:   GetConfig(),
		now:      time.Now,
		newID:    uuid.NewString,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Drain waits for in-flight dispatches to finish, up to the context
// deadline. Called during graceful shutdown after the listener stops
// accepting webhooks.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch processes one incoming alert to a terminal record. The
// returned record is always non-nil and already persisted in the
// ledger (persistence failures are logged, never surfaced to the
// webhook caller as a different outcome).
func (d *Dispatcher) Dispatch(ctx context.Context, alert model.IncomingAlert) (rec *model.DispatchRecord) {
	d.wg.Add(1)
	defer d.wg.Done()

	if alert.ReceivedAt.IsZero() {
		alert.ReceivedAt = d.now().UTC()
	}

	record := &model.DispatchRecord{
		ID:         d.newID(),
		UserID:     alert.UserID,
		Alert:      alert,
		ReceivedAt: alert.ReceivedAt,
	}
	rec = record

	log := logger.WithFields(logger.Fields{
		"dispatch_id": record.ID,
		"user_id":     alert.UserID,
		"config_name": alert.ConfigName,
	})

	if alert.UserID == "" || alert.ConfigName == "" ||
		strings.TrimSpace(alert.Symbol) == "" || alert.Price < 0 {
		return d.reject(record, model.ReasonMalformedPayload)
	}

	config, err := d.store.GetAlertConfig(ctx, alert.UserID, alert.ConfigName)
	if errors.Is(err, store.ErrNotFound) {
		return d.reject(record, model.ReasonConfigNotFound)
	}
	if err != nil {
		log.WithError(err).Error("Failed to load alert configuration")
		return d.fail(record, model.ReasonInternalError, "configuration store unavailable")
	}
	record.Config = config

	if !config.Enabled {
		return d.reject(record, model.ReasonConfigDisabled)
	}

	token, err := d.locker.Acquire(ctx, alert.UserID, alert.ConfigName, d.config.LockLease, d.config.LockWait)
	if errors.Is(err, store.ErrLockHeld) {
		return d.reject(record, model.ReasonConcurrentExecution)
	}
	if err != nil {
		log.WithError(err).Error("Failed to acquire dispatch lock")
		return d.fail(record, model.ReasonInternalError, "dispatch lock unavailable")
	}
	defer func() {
		// The terminal record is written by the time deferred calls run,
		// so releasing here keeps record-then-release ordering. A fresh
		// context lets the release survive webhook cancellation.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.locker.Release(releaseCtx, alert.UserID, alert.ConfigName, token); err != nil {
			log.WithError(err).Warn("Failed to release dispatch lock")
		}
	}()

	// Registered after the release defer, so it runs first: a panicked
	// dispatch still leaves a terminal record before the lock frees.
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Errorf("Dispatch panic: %+v", r)
		if !record.Terminal() {
			rec = d.fail(record, model.ReasonInternalError, model.ReasonInternalError)
		}
	}()

	return d.execute(ctx, log, record, config)
}

// execute runs the post-lock half: credentials, planning, submission.
func (d *Dispatcher) execute(ctx context.Context, log *logger.Entry, record *model.DispatchRecord, config *model.AlertConfig) *model.DispatchRecord {
	creds, failReason := d.openCredentials(ctx, config)
	if failReason != "" {
		return d.fail(record, failReason, failReason)
	}

	gw, err := d.gateways.Gateway(config.ExchangeID, *creds)
	if err != nil {
		return d.fail(record, model.ReasonExchangeNotSupported, "exchange "+config.ExchangeID+" is not supported")
	}

	price, err := resolvePrice(config, &record.Alert)
	if err != nil {
		return d.fail(record, model.ReasonInvalidOrder, err.Error())
	}

	amount, err := d.resolveAmount(ctx, gw, config, price, &record.Alert)
	if err != nil {
		reason, detail := classifyGatewayFailure(err)
		return d.fail(record, reason, detail)
	}

	plan := gateway.OrderPlan{
		Symbol:        config.Symbol,
		Side:          config.Side,
		OrderType:     config.OrderType,
		Amount:        amount,
		Price:         price,
		ClientOrderID: record.ID,
	}
	record.DecidedAt = d.now().UTC()

	// Intent marker first: a crash between here and the terminal append
	// leaves a trace the startup reconciler turns into a visible
	// exchange_error instead of a lost alert.
	if err := d.ledger.WriteIntent(ctx, record); err != nil {
		log.WithError(err).Warn("Failed to write dispatch intent")
	}

	var result *gateway.OrderResult
	err = d.withRetry(ctx, func() error {
		var perr error
		result, perr = gw.PlaceOrder(ctx, plan)
		return perr
	})
	if err != nil {
		reason, detail := classifyGatewayFailure(err)
		return d.fail(record, reason, detail)
	}

	record.Status = model.DispatchStatusExecuted
	record.ExchangeOrderID = result.ExchangeOrderID
	record.FilledAmount = result.FilledAmount
	record.AvgPrice = result.AvgPrice
	record.RawStatus = result.RawStatus
	record.CompletedAt = d.now().UTC()

	d.append(record)

	log.WithFields(logger.Fields{
		"exchange":          config.ExchangeID,
		"symbol":            config.Symbol,
		"exchange_order_id": record.ExchangeOrderID,
	}).Info("Dispatch executed")

	return record
}

// openCredentials loads and decrypts the user's key material. It
// returns a failure reason instead of an error so no wrapped message
// can leak ciphertext details.
func (d *Dispatcher) openCredentials(ctx context.Context, config *model.AlertConfig) (*gateway.Credentials, string) {
	cred, err := d.store.GetCredential(ctx, config.UserID, config.ExchangeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.ReasonCredentialNotFound
	}
	if err != nil {
		return nil, model.ReasonInternalError
	}

	apiKey, err := d.vault.DecryptString(cred.APIKeyCipher, cred.APIKeyNonce)
	if err != nil {
		return nil, model.ReasonDecryptionFailed
	}
	apiSecret, err := d.vault.DecryptString(cred.APISecretCipher, cred.APISecretNonce)
	if err != nil {
		return nil, model.ReasonDecryptionFailed
	}

	creds := &gateway.Credentials{APIKey: apiKey, APISecret: apiSecret}
	if cred.APIPassphraseCipher != "" {
		passphrase, err := d.vault.DecryptString(cred.APIPassphraseCipher, cred.APIPassphraseNonce)
		if err != nil {
			return nil, model.ReasonDecryptionFailed
		}
		creds.APIPassphrase = passphrase
	}

	return creds, ""
}

// withRetry runs fn, retrying only failures the gateway classified as
// retryable, with capped exponential backoff and the exchange's own
// Retry-After hint when it gave one.
func (d *Dispatcher) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		ge, ok := gateway.AsError(lastErr)
		if !ok || !ge.Retryable() || attempt == d.config.MaxAttempts {
			return lastErr
		}

		delay := backoffDelay(attempt, d.config.RetryBaseDelay, d.config.RetryMaxDelay, ge.RetryAfter)
		logger.WithError(lastErr).WithFields(logger.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("Retrying exchange call")

		if err := d.sleep(ctx, delay); err != nil {
			return lastErr
		}
	}

	return lastErr
}

// classifyGatewayFailure maps a gateway error onto (reason, detail) for
// the ledger. Retryable kinds only reach here after the attempt budget
// is spent, which makes the exchange unavailable from our side.
func classifyGatewayFailure(err error) (reason, detail string) {
	ge, ok := gateway.AsError(err)
	if !ok {
		if errors.Is(err, errNoUsablePrice) || errors.Is(err, errNoUsableAmount) {
			return model.ReasonInvalidOrder, err.Error()
		}
		return model.ReasonInternalError, model.ReasonInternalError
	}

	switch ge.Kind {
	case gateway.KindAuth:
		return model.ReasonAuthFailed, sanitizeDetail(ge)
	case gateway.KindInsufficientFunds:
		return model.ReasonInsufficientFunds, sanitizeDetail(ge)
	case gateway.KindInvalidOrder:
		return model.ReasonInvalidOrder, sanitizeDetail(ge)
	}
	return model.ReasonExchangeUnavailable, sanitizeDetail(ge)
}

const maxDetailBytes = 300

// sanitizeDetail keeps the persisted detail short and single-line.
// Truncation backs up to a rune boundary so the stored string stays
// valid UTF-8.
func sanitizeDetail(ge *gateway.Error) string {
	detail := strings.ReplaceAll(ge.Detail, "\n", " ")
	if len(detail) > maxDetailBytes {
		cut := maxDetailBytes
		for cut > 0 && !utf8.RuneStart(detail[cut]) {
			cut--
		}
		detail = detail[:cut]
	}
	return ge.Kind.String() + ": " + detail
}

func (d *Dispatcher) reject(record *model.DispatchRecord, reason string) *model.DispatchRecord {
	record.Status = model.DispatchStatusRejected
	record.ErrorDetail = reason
	record.DecidedAt = d.now().UTC()
	record.CompletedAt = record.DecidedAt
	d.append(record)

	logger.WithFields(logger.Fields{
		"dispatch_id": record.ID,
		"user_id":     record.UserID,
		"reason":      reason,
	}).Info("Dispatch rejected")

	return record
}

func (d *Dispatcher) fail(record *model.DispatchRecord, reason, detail string) *model.DispatchRecord {
	record.Status = model.DispatchStatusExchangeError
	record.ErrorDetail = detail
	if record.DecidedAt.IsZero() {
		record.DecidedAt = d.now().UTC()
	}
	record.CompletedAt = d.now().UTC()
	d.append(record)

	logger.WithFields(logger.Fields{
		"dispatch_id": record.ID,
		"user_id":     record.UserID,
		"reason":      reason,
		"detail":      detail,
	}).Warn("Dispatch failed")

	return record
}

// append persists the terminal record and clears any intent marker. An
// unreachable ledger must not change the dispatch outcome, so failures
// are logged only. The write gets its own context, same as the lock
// release: a webhook client that hangs up mid-dispatch must not erase
// the outcome.
func (d *Dispatcher) append(record *model.DispatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.ledger.Append(ctx, record); err != nil {
		logger.WithError(err).WithField("dispatch_id", record.ID).Error("Failed to append dispatch record")
		return
	}
	if err := d.ledger.ClearIntent(ctx, record.ID); err != nil {
		logger.WithError(err).WithField("dispatch_id", record.ID).Warn("Failed to clear dispatch intent")
	}
}
