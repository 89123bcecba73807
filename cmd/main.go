package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"alertbridge/cmd/keys"
	"alertbridge/src/dispatcher"
	"alertbridge/src/gateway"
	"alertbridge/src/ledger"
	"alertbridge/src/security"
	"alertbridge/src/store"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "AlertBridge CMD"
	app.Usage = "The AlertBridge command line interface"

	app.Commands = []cli.Command{
		keysCMD,
		reconcileCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	keysCMD = cli.Command{
		Name:        "keys",
		Usage:       "manage exchange API keys",
		Action:      keysAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Interactive CLI for storing and removing encrypted exchange API keys`,
	}
	reconcileCMD = cli.Command{
		Name:        "reconcile",
		Usage:       "resolve interrupted dispatches",
		Action:      reconcileAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Convert orphaned pre-submission intents into terminal ledger records`,
	}
)

func keysAction(_ *cli.Context) error {
	logrus.Info("Starting keys CMD")

	if err := keys.Run(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func reconcileAction(_ *cli.Context) error {
	logrus.Info("Starting reconcile CMD")

	vault, err := security.NewVaultFromConfig()
	if err != nil {
		return err
	}

	rdb, err := store.NewClient(store.GetConfig())
	if err != nil {
		return err
	}

	d := dispatcher.New(
		store.NewConfigStore(rdb),
		store.NewDispatchLock(rdb),
		ledger.New(rdb),
		vault,
		gateway.DefaultRegistry(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := d.Reconcile(ctx); err != nil {
		logrus.WithError(err).Error("Reconcile failed")
		return err
	}

	return nil
}
