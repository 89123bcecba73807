package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"alertbridge/src/archive"
	"alertbridge/src/database"
	"alertbridge/src/dispatcher"
	"alertbridge/src/gateway"
	"alertbridge/src/ledger"
	"alertbridge/src/security"
	"alertbridge/src/server"
	"alertbridge/src/store"
)

var (
	APP_NAME = os.Getenv("APP_NAME")
)

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	vault, err := security.NewVaultFromConfig()
	if err != nil {
		logger.WithError(err).Fatal("EXCHANGE_CREDENTIALS_KEY must be a base64 32-byte key")
	}

	rdb, err := store.NewClient(store.GetConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	configStore := store.NewConfigStore(rdb)
	locker := store.NewDispatchLock(rdb)
	dispatchLedger := ledger.New(rdb)

	serverDeps := server.Deps{Ledger: dispatchLedger}

	if database.GetConfig().EnableArchive {
		if err := database.InitMainDB(); err != nil {
			logger.WithError(err).Fatal("Failed to connect to archive database")
		}
		repo := archive.NewRepository()
		dispatchLedger.SetMirror(repo)
		serverDeps.Archive = repo
	}

	d := dispatcher.New(configStore, locker, dispatchLedger, vault, gateway.DefaultRegistry())
	serverDeps.Dispatcher = d

	// Surface anything a previous process left mid-submission before
	// accepting new alerts.
	reconcileCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.Reconcile(reconcileCtx); err != nil {
		logger.WithError(err).Fatal("Failed to reconcile interrupted dispatches")
	}

	server.StartServer(server.GetConfig().Port, serverDeps)
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
