package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	StoragePath    string
	PublicBasePath string

	BFLAPIKey        string
	BFLBaseURL       string
	StabilityAPIKey  string
	StabilityBaseURL string
	ProviderTimeout  time.Duration

	PollMaxAttempts int
	PollInterval    time.Duration

	UploadMaxBytes  int64
	UploadMaxAge    time.Duration
	CleanupInterval time.Duration
	CleanupEnabled  bool

	CORSAllowedOrigins []string
	RateLimitPerMin    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	Defaults Defaults
}

// Defaults are the operator-chosen option values applied when a request
// leaves them unset.
type Defaults struct {
	Model           string
	SafetyTolerance int
	OutputFormat    string
	FuseMaxEdge     int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	pollInterval := getEnvInt("POLL_INTERVAL_MS", 2000)
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "3001"),
		StoragePath:      getEnv("STORAGE_PATH", "./uploads"),
		PublicBasePath:   "/" + strings.Trim(getEnv("PUBLIC_BASE_PATH", "/uploads"), "/"),
		BFLAPIKey:        strings.TrimSpace(os.Getenv("BFL_API_KEY")),
		BFLBaseURL:       getEnv("BFL_API_BASE_URL", "https://api.bfl.ai"),
		StabilityAPIKey:  strings.TrimSpace(os.Getenv("STABILITY_API_KEY")),
		StabilityBaseURL: getEnv("STABILITY_BASE_URL", "https://api.stability.ai"),
		ProviderTimeout:  time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)),
		PollMaxAttempts:  getEnvInt("POLL_MAX_ATTEMPTS", 60),
		PollInterval:     time.Millisecond * time.Duration(pollInterval),
		UploadMaxBytes:   int64(getEnvInt("UPLOAD_MAX_BYTES", 10*1024*1024)),
		UploadMaxAge:     24 * time.Hour * time.Duration(getEnvInt("UPLOAD_MAX_AGE_DAYS", 7)),
		CleanupInterval:  time.Hour * time.Duration(getEnvInt("CLEANUP_INTERVAL_HOURS", 24)),
		CleanupEnabled:   getEnvBool("CLEANUP_ENABLED", true),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		// Operations block for the whole poll budget, so writes get more room.
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		Defaults: Defaults{
			Model:           getEnv("DEFAULT_MODEL", "flux-kontext-max"),
			SafetyTolerance: getEnvInt("DEFAULT_SAFETY_TOLERANCE", 2),
			OutputFormat:    getEnv("DEFAULT_OUTPUT_FORMAT", "jpeg"),
			FuseMaxEdge:     getEnvInt("FUSE_MAX_EDGE", 1024),
		},
	}
	cfg.CORSAllowedOrigins = corsOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"), os.Getenv("CLIENT_URL"))

	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if pollInterval < 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must not be negative")
	}
	if cfg.Defaults.SafetyTolerance < 0 || cfg.Defaults.SafetyTolerance > 2 {
		return nil, fmt.Errorf("DEFAULT_SAFETY_TOLERANCE must be between 0 and 2")
	}
	switch cfg.Defaults.OutputFormat {
	case "jpeg", "png":
	default:
		return nil, fmt.Errorf("DEFAULT_OUTPUT_FORMAT must be jpeg or png")
	}

	return cfg, nil
}

func corsOrigins(explicit, clientURL string) []string {
	var origins []string
	if strings.TrimSpace(explicit) != "" {
		origins = splitList(explicit)
	} else {
		origins = []string{
			"http://localhost:5173",
			"http://localhost:5174",
			"http://localhost:5175",
			"http://localhost:5176",
		}
	}
	if client := strings.TrimSpace(clientURL); client != "" {
		origins = append(origins, client)
	}
	return origins
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
