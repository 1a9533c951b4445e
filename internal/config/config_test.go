package config

import (
	"os"
	"testing"
)

func TestDefaultConfigPassesValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsMaxBelowMinConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crawler.MinConcurrency = 10
	cfg.Crawler.MaxConcurrency = 5
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error when max_concurrency < min_concurrency")
	}
}

func TestValidateRejectsUnsupportedStorageType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "xml"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for an unsupported storage.type")
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://example.com/page"); err != nil {
		t.Errorf("expected a valid https URL to pass, got: %v", err)
	}
	if err := ValidateURL("ftp://example.com"); err == nil {
		t.Error("expected ftp scheme to be rejected")
	}
	if err := ValidateURL("not a url"); err == nil {
		t.Error("expected an unparseable URL to be rejected")
	}
}

func TestPurgeOnStartDefaultsTrue(t *testing.T) {
	os.Unsetenv("CRAWLEE_PURGE_ON_START")
	if !PurgeOnStart() {
		t.Error("expected PurgeOnStart to default to true")
	}

	os.Setenv("CRAWLEE_PURGE_ON_START", "0")
	defer os.Unsetenv("CRAWLEE_PURGE_ON_START")
	if PurgeOnStart() {
		t.Error("expected CRAWLEE_PURGE_ON_START=0 to disable purge")
	}
}

func TestInternalTimeoutOverride(t *testing.T) {
	os.Unsetenv("CRAWLEE_INTERNAL_TIMEOUT")
	if _, ok := InternalTimeoutOverride(); ok {
		t.Error("expected no override when env var is unset")
	}

	os.Setenv("CRAWLEE_INTERNAL_TIMEOUT", "1500")
	defer os.Unsetenv("CRAWLEE_INTERNAL_TIMEOUT")
	d, ok := InternalTimeoutOverride()
	if !ok {
		t.Fatal("expected an override to be present")
	}
	if d.Milliseconds() != 1500 {
		t.Errorf("expected 1500ms, got %v", d)
	}

	os.Setenv("CRAWLEE_INTERNAL_TIMEOUT", "not-a-number")
	if _, ok := InternalTimeoutOverride(); ok {
		t.Error("expected an unparseable value to be ignored")
	}
}

func TestStorageDirDefaultAndOverride(t *testing.T) {
	os.Unsetenv("CRAWLEE_STORAGE_DIR")
	if StorageDir() != "./storage" {
		t.Errorf("expected default storage dir, got %q", StorageDir())
	}

	os.Setenv("CRAWLEE_STORAGE_DIR", "/tmp/custom")
	defer os.Unsetenv("CRAWLEE_STORAGE_DIR")
	if StorageDir() != "/tmp/custom" {
		t.Errorf("expected overridden storage dir, got %q", StorageDir())
	}
}

func TestVerboseLog(t *testing.T) {
	os.Unsetenv("CRAWLEE_VERBOSE_LOG")
	if VerboseLog() {
		t.Error("expected VerboseLog to default to false")
	}

	os.Setenv("CRAWLEE_VERBOSE_LOG", "true")
	defer os.Unsetenv("CRAWLEE_VERBOSE_LOG")
	if !VerboseLog() {
		t.Error("expected CRAWLEE_VERBOSE_LOG=true to enable verbose logging")
	}
}
