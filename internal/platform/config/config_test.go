package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"STOREFRONT_CATALOG_BASE_URL":    "https://catalog.example",
		"STOREFRONT_PRICING_BASE_URL":    "https://pricing.example",
		"STOREFRONT_COUPONS_BASE_URL":    "https://coupons.example",
		"STOREFRONT_AUTH_SESSION_SECRET": "session-secret",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.Storage.Backend != StorageBackendFile {
		t.Errorf("expected default file backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.DataDir != "./data" {
		t.Errorf("unexpected default data dir: %s", cfg.Storage.DataDir)
	}
	if cfg.Pricing.QuoteTimeout != 10*time.Second {
		t.Errorf("unexpected quote timeout: %s", cfg.Pricing.QuoteTimeout)
	}
	if cfg.Pricing.CatalogCacheTTL != 5*time.Minute {
		t.Errorf("unexpected catalog cache ttl: %s", cfg.Pricing.CatalogCacheTTL)
	}
	if cfg.Selection.FlowTTL != 30*time.Minute {
		t.Errorf("unexpected flow ttl: %s", cfg.Selection.FlowTTL)
	}
	if cfg.Checkout.Currency != "USD" {
		t.Errorf("expected default currency USD, got %s", cfg.Checkout.Currency)
	}
	if !cfg.Features.EnableDynamicPricing || !cfg.Features.EnableCoupons {
		t.Errorf("expected pricing and coupon features on by default")
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := baseEnv()
	env["STOREFRONT_SERVER_PORT"] = "9090"
	env["STOREFRONT_SERVER_READ_TIMEOUT"] = "20s"
	env["STOREFRONT_STORAGE_BACKEND"] = "firestore"
	env["STOREFRONT_FIRESTORE_PROJECT_ID"] = "np-prod"
	env["STOREFRONT_FIRESTORE_EMULATOR_HOST"] = "localhost:8200"
	env["STOREFRONT_PRICING_QUOTE_TIMEOUT"] = "3s"
	env["STOREFRONT_CHECKOUT_CURRENCY"] = "eur"
	env["STOREFRONT_FEATURE_COUPONS"] = "off"
	env["STOREFRONT_STRIPE_API_KEY"] = "sk_test_123"

	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Backend != StorageBackendFirestore {
		t.Errorf("expected firestore backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Firestore.ProjectID != "np-prod" || cfg.Firestore.CartsCollection != "carts" {
		t.Errorf("unexpected firestore config: %+v", cfg.Firestore)
	}
	if cfg.Pricing.QuoteTimeout != 3*time.Second {
		t.Errorf("unexpected quote timeout: %s", cfg.Pricing.QuoteTimeout)
	}
	if cfg.Checkout.Currency != "EUR" {
		t.Errorf("expected currency upper-cased, got %s", cfg.Checkout.Currency)
	}
	if cfg.Features.EnableCoupons {
		t.Errorf("expected coupons disabled")
	}
	if cfg.Stripe.APIKey != "sk_test_123" {
		t.Errorf("unexpected stripe key: %s", cfg.Stripe.APIKey)
	}
}

func TestLoadValidatesRequiredFields(t *testing.T) {
	_, err := Load(WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := validation.Fields()
	if len(fields) == 0 {
		t.Fatalf("expected missing fields reported")
	}
	want := map[string]bool{"Catalog.BaseURL": false, "Auth.SessionSecret": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s reported missing, got %v", field, fields)
		}
	}
}

func TestLoadFirestoreBackendRequiresProject(t *testing.T) {
	env := baseEnv()
	env["STOREFRONT_STORAGE_BACKEND"] = "firestore"

	_, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "Firestore.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Firestore.ProjectID reported, got %v", validation.Fields())
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	env := baseEnv()
	env["STOREFRONT_STORAGE_BACKEND"] = "redis"

	if _, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile("")); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadFeatureFlagDisablesUpstreamRequirement(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_CATALOG_BASE_URL":        "https://catalog.example",
		"STOREFRONT_AUTH_SESSION_SECRET":     "session-secret",
		"STOREFRONT_FEATURE_DYNAMIC_PRICING": "false",
		"STOREFRONT_FEATURE_COUPONS":         "false",
	}
	cfg, err := Load(WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Features.EnableDynamicPricing || cfg.Features.EnableCoupons {
		t.Fatalf("expected both features disabled")
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	contents := "STOREFRONT_SERVER_PORT=7070\nexport STOREFRONT_CATALOG_BASE_URL=\"https://catalog.example\"\n# comment\nSTOREFRONT_AUTH_SESSION_SECRET=dotenv-secret\nSTOREFRONT_PRICING_BASE_URL=https://pricing.example\nSTOREFRONT_COUPONS_BASE_URL=https://coupons.example\n"
	if err := os.WriteFile(envFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithEnvFile(envFile), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv, got %s", cfg.Server.Port)
	}
	if cfg.Catalog.BaseURL != "https://catalog.example" {
		t.Errorf("expected quoted value unwrapped, got %s", cfg.Catalog.BaseURL)
	}
	if cfg.Auth.SessionSecret != "dotenv-secret" {
		t.Errorf("unexpected session secret: %s", cfg.Auth.SessionSecret)
	}
}

func TestEnvMapTakesPrecedenceOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("STOREFRONT_SERVER_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	env := baseEnv()
	env["STOREFRONT_SERVER_PORT"] = "6060"
	cfg, err := Load(WithEnvFile(envFile), WithEnvMap(env), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected env map to win, got %s", cfg.Server.Port)
	}
}
