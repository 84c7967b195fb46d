// Package config holds process-wide configuration and the shared
// clients the API layer uses: environment settings, the PostgreSQL
// pool, and the redis client.
package config

import (
	"fmt"
	"os"
)

// Token constants shared by issuance and verification.
const (
	JWTIssuer   = "PaissaDB"
	JWTAudience = "PaissaHouse"
)

// JWTSecret signs and verifies sweeper session tokens.
var JWTSecret string

// SentryDSN enables error reporting when non-empty.
var SentryDSN string

// SentryEnv tags Sentry events with the deploy environment.
var SentryEnv string

// LogLevel is the minimum level name for the process logger.
var LogLevel string

// GamedataDir points at the EXD CSV exports for static data import.
var GamedataDir string

// Load reads application settings from the environment.
func Load() error {
	JWTSecret = os.Getenv("JWT_SECRET_PAISSAHOUSE")
	if JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_PAISSAHOUSE is required")
	}

	SentryDSN = os.Getenv("SENTRY_DSN")

	SentryEnv = os.Getenv("SENTRY_ENV")
	if SentryEnv == "" {
		SentryEnv = "development"
	}

	LogLevel = os.Getenv("LOGLEVEL")
	if LogLevel == "" {
		LogLevel = "INFO"
	}

	GamedataDir = os.Getenv("GAMEDATA_DIR")
	if GamedataDir == "" {
		GamedataDir = "gamedata"
	}

	return nil
}
