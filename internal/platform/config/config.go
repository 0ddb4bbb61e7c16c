package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile         = ".env"
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultLogLevel        = "info"
	defaultStorageBackend  = "file"
	defaultStorageDir      = "./data"
	defaultCartsCollection = "carts"
	defaultUpstreamTimeout = 15 * time.Second
	defaultQuoteTimeout    = 10 * time.Second
	defaultCatalogCacheTTL = 5 * time.Minute
	defaultFlowTTL         = 30 * time.Minute
	defaultCheckoutTTL     = 30 * time.Minute
	defaultCurrency        = "USD"
)

// Storage backends.
const (
	StorageBackendFile      = "file"
	StorageBackendFirestore = "firestore"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Storage   StorageConfig
	Firestore FirestoreConfig
	Catalog   UpstreamConfig
	Pricing   PricingConfig
	Coupons   UpstreamConfig
	Stripe    StripeConfig
	Auth      AuthConfig
	Checkout  CheckoutConfig
	Selection SelectionConfig
	Features  FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level     string
	ProjectID string
}

// StorageConfig selects where carts are persisted.
type StorageConfig struct {
	Backend string
	DataDir string
}

// FirestoreConfig stores database parameters for the firestore backend.
type FirestoreConfig struct {
	ProjectID       string
	CartsCollection string
	EmulatorHost    string
}

// UpstreamConfig points at one upstream platform API.
type UpstreamConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// PricingConfig configures the price quote upstream and the per-quote budget.
type PricingConfig struct {
	Upstream        UpstreamConfig
	QuoteTimeout    time.Duration
	CatalogCacheTTL time.Duration
}

// StripeConfig collects payment provider credentials.
type StripeConfig struct {
	APIKey    string
	AccountID string
}

// AuthConfig holds session token verification settings.
type AuthConfig struct {
	SessionSecret string
}

// CheckoutConfig controls checkout behaviour.
type CheckoutConfig struct {
	Currency   string
	SessionTTL time.Duration
}

// SelectionConfig controls purchase flow lifetimes.
type SelectionConfig struct {
	FlowTTL time.Duration
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	EnableDynamicPricing bool
	EnableCoupons        bool
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "STOREFRONT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "STOREFRONT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Log: LogConfig{
			Level:     stringWithDefault(lookup, "STOREFRONT_LOG_LEVEL", defaultLogLevel),
			ProjectID: stringWithDefault(lookup, "STOREFRONT_LOG_PROJECT_ID", ""),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(stringWithDefault(lookup, "STOREFRONT_STORAGE_BACKEND", defaultStorageBackend)),
			DataDir: stringWithDefault(lookup, "STOREFRONT_STORAGE_DATA_DIR", defaultStorageDir),
		},
		Firestore: FirestoreConfig{
			ProjectID:       stringWithDefault(lookup, "STOREFRONT_FIRESTORE_PROJECT_ID", ""),
			CartsCollection: stringWithDefault(lookup, "STOREFRONT_FIRESTORE_CARTS_COLLECTION", defaultCartsCollection),
			EmulatorHost:    stringWithDefault(lookup, "STOREFRONT_FIRESTORE_EMULATOR_HOST", ""),
		},
		Catalog: UpstreamConfig{
			BaseURL:  stringWithDefault(lookup, "STOREFRONT_CATALOG_BASE_URL", ""),
			APIToken: stringWithDefault(lookup, "STOREFRONT_CATALOG_API_TOKEN", ""),
			Timeout:  durationWithDefault(lookup, "STOREFRONT_CATALOG_TIMEOUT", defaultUpstreamTimeout),
		},
		Pricing: PricingConfig{
			Upstream: UpstreamConfig{
				BaseURL:  stringWithDefault(lookup, "STOREFRONT_PRICING_BASE_URL", ""),
				APIToken: stringWithDefault(lookup, "STOREFRONT_PRICING_API_TOKEN", ""),
				Timeout:  durationWithDefault(lookup, "STOREFRONT_PRICING_TIMEOUT", defaultUpstreamTimeout),
			},
			QuoteTimeout:    durationWithDefault(lookup, "STOREFRONT_PRICING_QUOTE_TIMEOUT", defaultQuoteTimeout),
			CatalogCacheTTL: durationWithDefault(lookup, "STOREFRONT_CATALOG_CACHE_TTL", defaultCatalogCacheTTL),
		},
		Coupons: UpstreamConfig{
			BaseURL:  stringWithDefault(lookup, "STOREFRONT_COUPONS_BASE_URL", ""),
			APIToken: stringWithDefault(lookup, "STOREFRONT_COUPONS_API_TOKEN", ""),
			Timeout:  durationWithDefault(lookup, "STOREFRONT_COUPONS_TIMEOUT", defaultUpstreamTimeout),
		},
		Stripe: StripeConfig{
			APIKey:    stringWithDefault(lookup, "STOREFRONT_STRIPE_API_KEY", ""),
			AccountID: stringWithDefault(lookup, "STOREFRONT_STRIPE_ACCOUNT_ID", ""),
		},
		Auth: AuthConfig{
			SessionSecret: stringWithDefault(lookup, "STOREFRONT_AUTH_SESSION_SECRET", ""),
		},
		Checkout: CheckoutConfig{
			Currency:   strings.ToUpper(stringWithDefault(lookup, "STOREFRONT_CHECKOUT_CURRENCY", defaultCurrency)),
			SessionTTL: durationWithDefault(lookup, "STOREFRONT_CHECKOUT_SESSION_TTL", defaultCheckoutTTL),
		},
		Selection: SelectionConfig{
			FlowTTL: durationWithDefault(lookup, "STOREFRONT_SELECTION_FLOW_TTL", defaultFlowTTL),
		},
		Features: FeatureFlags{
			EnableDynamicPricing: boolWithDefault(lookup, "STOREFRONT_FEATURE_DYNAMIC_PRICING", true),
			EnableCoupons:        boolWithDefault(lookup, "STOREFRONT_FEATURE_COUPONS", true),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Storage.Backend {
	case StorageBackendFile:
		if strings.TrimSpace(cfg.Storage.DataDir) == "" {
			missing = append(missing, "Storage.DataDir")
		}
	case StorageBackendFirestore:
		if strings.TrimSpace(cfg.Firestore.ProjectID) == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
		if strings.TrimSpace(cfg.Firestore.CartsCollection) == "" {
			missing = append(missing, "Firestore.CartsCollection")
		}
	default:
		missing = append(missing, "Storage.Backend")
	}
	if strings.TrimSpace(cfg.Catalog.BaseURL) == "" {
		missing = append(missing, "Catalog.BaseURL")
	}
	if cfg.Features.EnableDynamicPricing && strings.TrimSpace(cfg.Pricing.Upstream.BaseURL) == "" {
		missing = append(missing, "Pricing.Upstream.BaseURL")
	}
	if cfg.Features.EnableCoupons && strings.TrimSpace(cfg.Coupons.BaseURL) == "" {
		missing = append(missing, "Coupons.BaseURL")
	}
	if strings.TrimSpace(cfg.Auth.SessionSecret) == "" {
		missing = append(missing, "Auth.SessionSecret")
	}
	if cfg.Checkout.SessionTTL <= 0 {
		missing = append(missing, "Checkout.SessionTTL")
	}
	if cfg.Selection.FlowTTL <= 0 {
		missing = append(missing, "Selection.FlowTTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
