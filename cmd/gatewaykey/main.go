package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"doacao/internal/infra"
	"doacao/internal/infra/credentials"
)

// envFallback names the environment variable read when -key is omitted.
var envFallback = map[string]string{
	credentials.ProviderSecretTest:  "GATEWAY_SECRET_KEY_TEST",
	credentials.ProviderSecretLive:  "GATEWAY_SECRET_KEY_LIVE",
	credentials.ProviderWebhookTest: "GATEWAY_WEBHOOK_SECRET_TEST",
	credentials.ProviderWebhookLive: "GATEWAY_WEBHOOK_SECRET_LIVE",
	credentials.ProviderExchange:    "EXCHANGE_API_KEY",
}

func main() {
	var (
		keyFlag      string
		providerFlag string
		listFlag     bool
	)
	flag.StringVar(&keyFlag, "key", "", "credential value (falls back to the provider's environment variable)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderSecretTest, "credential to store: "+strings.Join(credentials.Providers(), ", "))
	flag.BoolVar(&listFlag, "list", false, "list stored credentials (masked) and exit")
	flag.Parse()

	if listFlag {
		listStored()
		return
	}

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if !slices.Contains(credentials.Providers(), provider) {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envFallback[provider]))
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s is required via -key or %s\n", provider, envFallback[provider])
		os.Exit(1)
	}

	pool := connect()
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "gatewaykey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if err := store.Set(ctxExec, provider, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s stored (%s)\n", provider, infra.MaskSecret(key))
}

func listStored() {
	pool := connect()
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "gatewaykey").Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := credentials.NewStore(infra.NewSQLRunner(pool, logger)).List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list credentials: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("no credentials stored")
		return
	}
	for _, e := range entries {
		fmt.Printf("%-22s %-14s %s\n", e.Provider, e.Hint, e.UpdatedAt.Format(time.RFC3339))
	}
}

func connect() *pgxpool.Pool {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	return pool
}
