package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultIdentityBackendURL is used when IDENTITY_BACKEND_URL is not set.
const DefaultIdentityBackendURL = "http://localhost:3001"

// Config aggregates runtime configuration for the collabit session service.
type Config struct {
	Environment    string
	HTTPPort       int
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string

	// SigningSecret is empty when no secret was configured. Callers resolve
	// the effective secret through session.ResolveSecret.
	SigningSecret string

	IdentityBackendURL string
	// IdentityBackendURLDefaulted reports that IdentityBackendURL fell back to DefaultIdentityBackendURL.
	IdentityBackendURLDefaulted bool
	IdentityTimeout             time.Duration

	PublicAppURL         string
	OAuthRedirectBaseURL string

	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string

	DataStore   string
	DatabaseURL string

	LoginRateLimit float64
	LoginRateBurst int

	// TrustedProxies lists the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means client addresses come from the
	// connection only.
	TrustedProxies []netip.Prefix
}

// Load reads configuration from environment variables. Defaults suit local
// development except APP_ENV, which must be set to "development" explicitly.
func Load() (Config, error) {
	signingSecret, err := getEnvOrFile("SIGNING_SECRET", "/run/secrets/collabit_signing_secret")
	if err != nil {
		return Config{}, err
	}

	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/collabit_database_url")
	if err != nil {
		return Config{}, err
	}

	googleSecret, err := getEnvOrFile("GOOGLE_CLIENT_SECRET", "")
	if err != nil {
		return Config{}, err
	}

	githubSecret, err := getEnvOrFile("GITHUB_CLIENT_SECRET", "")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:        strings.ToLower(getEnv("APP_ENV", "production")),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		AllowedOrigins:     parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		SigningSecret:      strings.TrimSpace(signingSecret),
		IdentityBackendURL: strings.TrimRight(strings.TrimSpace(os.Getenv("IDENTITY_BACKEND_URL")), "/"),
		PublicAppURL:       strings.TrimRight(getEnv("PUBLIC_APP_URL", "http://localhost:3000"), "/"),
		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret: strings.TrimSpace(googleSecret),
		GitHubClientID:     strings.TrimSpace(os.Getenv("GITHUB_CLIENT_ID")),
		GitHubClientSecret: strings.TrimSpace(githubSecret),
		DataStore:          strings.ToLower(getEnv("DATA_STORE", "memory")),
		DatabaseURL:        databaseURL,
	}

	if cfg.IdentityBackendURL == "" {
		cfg.IdentityBackendURL = DefaultIdentityBackendURL
		cfg.IdentityBackendURLDefaulted = true
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port
	cfg.OAuthRedirectBaseURL = strings.TrimRight(getEnv("OAUTH_REDIRECT_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")

	timeoutValue := getEnv("IDENTITY_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid IDENTITY_TIMEOUT %q: %w", timeoutValue, err)
	}
	if timeout <= 0 {
		return Config{}, fmt.Errorf("IDENTITY_TIMEOUT must be positive")
	}
	cfg.IdentityTimeout = timeout

	rateValue := getEnv("LOGIN_RATE_LIMIT", "1")
	rate, err := strconv.ParseFloat(rateValue, 64)
	if err != nil || rate <= 0 {
		return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT %q", rateValue)
	}
	cfg.LoginRateLimit = rate

	burstValue := getEnv("LOGIN_RATE_BURST", "5")
	burst, err := strconv.Atoi(burstValue)
	if err != nil || burst <= 0 {
		return Config{}, fmt.Errorf("invalid LOGIN_RATE_BURST %q", burstValue)
	}
	cfg.LoginRateBurst = burst

	proxies, err := parseProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return Config{}, err
	}
	cfg.TrustedProxies = proxies

	switch cfg.DataStore {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
		}
	default:
		return Config{}, fmt.Errorf("unsupported DATA_STORE %q", cfg.DataStore)
	}

	if !cfg.IsDevelopment() {
		if len(cfg.AllowedOrigins) == 0 {
			return Config{}, fmt.Errorf("ALLOWED_ORIGINS must define at least one origin outside development")
		}
		for _, origin := range cfg.AllowedOrigins {
			if strings.Contains(origin, "*") {
				return Config{}, fmt.Errorf("ALLOWED_ORIGINS cannot contain wildcard outside development")
			}
		}
	}

	return cfg, nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// UseInMemoryStore returns true if the in-memory audit repository should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseProxies accepts a comma separated list of CIDR ranges or bare addresses.
func parseProxies(value string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range parseCSV(value) {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
