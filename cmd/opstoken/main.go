// Command opstoken mints a bearer token for an operator of the corebank API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/josh-kwaku/corebank/internal/auth"
	"github.com/josh-kwaku/corebank/internal/config"
	"github.com/josh-kwaku/corebank/internal/logging"
)

func main() {
	operator := flag.String("operator", "", "operator id to embed as the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to OPERATOR_TOKEN_TTL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init("corebank-opstoken", cfg.LogLevel, cfg.AppEnv)

	if *operator == "" {
		slog.Error("missing -operator")
		flag.Usage()
		os.Exit(2)
	}
	if *ttl <= 0 {
		*ttl = cfg.OperatorTokenTTL
	}

	token, err := auth.GenerateToken(*operator, cfg.JWTSecret, *ttl)
	if err != nil {
		slog.Error("failed to mint token", "error", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
