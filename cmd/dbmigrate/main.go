package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"doacao/internal/infra"
	"doacao/internal/sqlinline"
)

func main() {
	var dryRun bool
	flag.BoolVar(&dryRun, "dry-run", false, "print the statements without applying them")
	flag.Parse()

	if dryRun {
		for _, stmt := range sqlinline.Schema {
			fmt.Println(strings.TrimSuffix(strings.TrimSpace(stmt), ";") + ";")
		}
		return
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(fmt.Errorf("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "dbmigrate").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	// Every statement is idempotent, so reruns are safe.
	for i, stmt := range sqlinline.Schema {
		if _, err := runner.Exec(ctx, stmt); err != nil {
			exitWithError(fmt.Errorf("statement %d failed: %w", i+1, err))
		}
	}
	fmt.Printf("applied %d schema statements\n", len(sqlinline.Schema))
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
