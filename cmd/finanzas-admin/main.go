package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"finanzas/internal/auth"
	"finanzas/internal/backend"
	"finanzas/internal/cli"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

const usage = `usage:
  finanzas-admin create-user <username> <password>
  finanzas-admin reset -yes
`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentAdmin)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// the admin tool never publishes
	backendCfg.Events = backend.NoEvents
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to open storage", log.FieldError, err)
		os.Exit(1)
	}

	err = run(context.Background(), res.Repository, cfg.SessionTTL, os.Args[1], os.Args[2:])
	if cerr := res.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup failed", log.FieldError, cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, repo *storage.Repository, ttl time.Duration, cmd string, args []string) error {
	switch cmd {
	case "create-user":
		if len(args) != 2 {
			return fmt.Errorf("create-user takes <username> <password>\n%s", usage)
		}
		user, err := auth.NewService(repo, ttl).CreateUser(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("created user %q (id %d)\n", user.Username, user.ID)
		return nil
	case "reset":
		fs := flag.NewFlagSet("reset", flag.ContinueOnError)
		yes := fs.Bool("yes", false, "confirm deleting every transaction and envelope")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if !*yes {
			return fmt.Errorf("reset deletes all transactions and envelopes of every user; rerun with -yes")
		}
		txs, envs, err := repo.ResetLedger(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d transactions and %d envelopes\n", txs, envs)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}
