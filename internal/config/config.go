package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment
// variables. Verification secrets are threaded into the resolver explicitly;
// nothing in the codebase reads them from globals.
type Config struct {
	Port        int
	DatabaseURL string

	// JWTSecrets is an ordered list of currently-valid signing secrets.
	// Tokens are signed with the first and verified against any, so a
	// rotation can keep the previous secret live until old tokens expire.
	JWTSecrets []string
	// RelaySecret is shared with the trusted chat relay for HMAC signing.
	RelaySecret string

	WebTokenTTL    time.Duration
	BindRequestTTL time.Duration
	BindBaseURL    string

	CORSOrigins []string
	LogLevel    string
	LogJSON     bool
}

// Load reads configuration from environment variables, loading a local .env
// file first if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, _ := strconv.Atoi(getEnv("PORT", "4001"))

	secrets := splitList(getEnv("JWT_SECRETS", os.Getenv("JWT_SECRET")))
	if len(secrets) == 0 {
		return nil, fmt.Errorf("JWT_SECRETS is required")
	}

	relaySecret := getEnv("CHAT_RELAY_SECRET", "")
	if relaySecret == "" {
		return nil, fmt.Errorf("CHAT_RELAY_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	tokenTTL, err := parseDuration(getEnv("WEB_TOKEN_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEB_TOKEN_TTL: %w", err)
	}
	bindTTL, err := parseDuration(getEnv("BIND_REQUEST_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid BIND_REQUEST_TTL: %w", err)
	}

	return &Config{
		Port:           port,
		DatabaseURL:    dbURL,
		JWTSecrets:     secrets,
		RelaySecret:    relaySecret,
		WebTokenTTL:    tokenTTL,
		BindRequestTTL: bindTTL,
		BindBaseURL:    getEnv("BIND_BASE_URL", "http://localhost:3000/bind"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogJSON:        getEnv("LOG_FORMAT", "") == "json",
	}, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
