package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Quantity policies for cart quantity updates.
const (
	QuantityPolicyLenient = "lenient"
	QuantityPolicyStrict  = "strict"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string

	DataDir            string
	BookDataFile       string
	UserDataFile       string
	OrderLogFile       string
	OrderHistoryPrefix string
	SessionDataFile    string

	JWTSecret      string
	AccessTokenTTL time.Duration
	AdminUsername  string
	AdminPassword  string
	LoginRateLimit string

	Coupons                 map[string]decimal.Decimal
	CartMergeDuplicateLines bool
	CartQuantityPolicy      string

	NotifyEnabled bool
	NotifyDelay   time.Duration
	NotifyFrom    string

	RedisURL         string
	LockTTL          time.Duration
	LockRetryBackoff time.Duration

	KafkaBrokers    []string
	KafkaOrderTopic string

	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	coupons, err := parseCoupons(valueOrDefault(k.String("COUPON_CODES"), "SAVE10:0.90"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DataDir:            valueOrDefault(k.String("DATA_DIR"), "data"),
		BookDataFile:       valueOrDefault(k.String("BOOK_DATA_FILE"), "book_data.txt"),
		UserDataFile:       valueOrDefault(k.String("USER_DATA_FILE"), "user_data.txt"),
		OrderLogFile:       valueOrDefault(k.String("ORDER_LOG_FILE"), "order_details.txt"),
		OrderHistoryPrefix: valueOrDefault(k.String("ORDER_HISTORY_PREFIX"), "order_history_"),
		SessionDataFile:    valueOrDefault(k.String("SESSION_DATA_FILE"), "session_data.txt"),

		JWTSecret:      k.String("JWT_SECRET"),
		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "12h"),
		AdminUsername:  valueOrDefault(k.String("ADMIN_USERNAME"), "admin"),
		AdminPassword:  valueOrDefault(k.String("ADMIN_PASSWORD"), "admin123"),
		LoginRateLimit: valueOrDefault(k.String("LOGIN_RATE_LIMIT"), "10-M"),

		Coupons:                 coupons,
		CartMergeDuplicateLines: parseBool(k.String("CART_MERGE_DUPLICATE_LINES")),
		CartQuantityPolicy:      strings.ToLower(valueOrDefault(k.String("CART_QUANTITY_POLICY"), QuantityPolicyLenient)),

		NotifyEnabled: parseBoolDefault(k.String("NOTIFY_ENABLED"), true),
		NotifyDelay:   parseDuration(k.String("NOTIFY_DELAY"), "1s"),
		NotifyFrom:    valueOrDefault(k.String("NOTIFY_FROM"), "orders@bookstore.local"),

		RedisURL:         strings.TrimSpace(k.String("REDIS_URL")),
		LockTTL:          parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		KafkaBrokers:    splitAndTrim(k.String("KAFKA_BROKERS")),
		KafkaOrderTopic: valueOrDefault(k.String("KAFKA_ORDER_TOPIC"), "orders.created"),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 4),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	switch cfg.CartQuantityPolicy {
	case QuantityPolicyLenient, QuantityPolicyStrict:
	default:
		return nil, fmt.Errorf("CART_QUANTITY_POLICY must be %q or %q", QuantityPolicyLenient, QuantityPolicyStrict)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Path resolves a data file name against DataDir.
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// CouponCodes lists the configured coupon codes in sorted order.
func (c *Config) CouponCodes() []string {
	codes := make([]string, 0, len(c.Coupons))
	for code := range c.Coupons {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// parseCoupons reads "CODE:multiplier,CODE:multiplier".
func parseCoupons(value string) (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	for _, part := range splitAndTrim(value) {
		code, mult, ok := strings.Cut(part, ":")
		code = strings.TrimSpace(code)
		if !ok || code == "" {
			return nil, fmt.Errorf("COUPON_CODES: malformed entry %q", part)
		}
		m, err := decimal.NewFromString(strings.TrimSpace(mult))
		if err != nil {
			return nil, fmt.Errorf("COUPON_CODES: %s: %w", code, err)
		}
		if !m.IsPositive() || m.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("COUPON_CODES: %s multiplier must be in (0, 1]", code)
		}
		out[code] = m
	}
	return out, nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
