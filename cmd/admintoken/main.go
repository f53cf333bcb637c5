package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"doacao/internal/middleware"
)

func main() {
	var (
		subjectFlag string
		ttlFlag     time.Duration
	)
	flag.StringVar(&subjectFlag, "sub", "", "operator name recorded in the token")
	flag.DurationVar(&ttlFlag, "ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	subject := strings.TrimSpace(subjectFlag)
	if subject == "" {
		exitWithError(errors.New("-sub is required"))
	}
	if ttlFlag <= 0 {
		exitWithError(errors.New("-ttl must be positive"))
	}
	secret := strings.TrimSpace(os.Getenv("ADMIN_JWT_SECRET"))
	if secret == "" {
		exitWithError(errors.New("ADMIN_JWT_SECRET is required"))
	}

	token, err := middleware.SignJWT(secret, middleware.AdminClaims{
		Sub:  subject,
		Role: middleware.RoleAdmin,
		Exp:  time.Now().Add(ttlFlag).Unix(),
	})
	if err != nil {
		exitWithError(fmt.Errorf("failed to sign token: %w", err))
	}
	fmt.Println(token)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
