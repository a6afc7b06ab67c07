//go:build ignore

// Mints an admin bearer token for the /api/v1 routes using the configured
// JWT secret. Usage: ADMIN_SUBJECT=ops@example.com go run scripts/admin_token.go
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rail-service/deposit_monitor/internal/infrastructure/config"
	"github.com/rail-service/deposit_monitor/pkg/auth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	subject := os.Getenv("ADMIN_SUBJECT")
	if subject == "" {
		log.Fatal("ADMIN_SUBJECT environment variable is required")
	}

	role := getEnv("ADMIN_ROLE", auth.RoleAdmin)
	ttl, err := time.ParseDuration(getEnv("ADMIN_TOKEN_TTL", "24h"))
	if err != nil {
		log.Fatalf("Invalid ADMIN_TOKEN_TTL: %v", err)
	}

	token, expiresAt, err := auth.GenerateToken(subject, role, cfg.JWT.Issuer, cfg.JWT.Secret, ttl)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "role=%s expires_at=%s\n", role, expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
