package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"alertbridge/src/dispatcher"
	"alertbridge/src/handler"
	"alertbridge/src/ledger"
)

// Deps carries everything the HTTP surface needs. Archive is optional;
// its route is only mounted when a repository is present.
type Deps struct {
	Dispatcher *dispatcher.Dispatcher
	Ledger     *ledger.Ledger
	Archive    handler.ArchiveSearcher
}

// NewRouter builds the full route table.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})

	r.Post("/webhook/tradingview", handler.TradingViewWebhookHandler(deps.Dispatcher))
	r.Get("/api/history", handler.DispatchHistoryHandler(deps.Ledger))

	if deps.Archive != nil {
		r.Get("/api/dispatches", handler.SearchDispatchesHandler(deps.Archive))
	}

	return r
}

// StartServer runs the bridge's HTTP listener until SIGINT/SIGTERM,
// then shuts down: stop accepting, let in-flight requests finish, and
// drain any dispatch still talking to an exchange.
func StartServer(port string, deps Deps) {
	r := NewRouter(deps)

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := deps.Dispatcher.Drain(drainCtx); err != nil {
		logger.WithError(err).Warn("Shutdown with dispatches still in flight; orphaned intents will be reconciled at next start")
	}
}
