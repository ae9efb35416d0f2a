package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// setupTestHome creates a temporary home directory for testing.
// Returns the home dir path and a cleanup function.
func setupTestHome(t *testing.T) (string, func()) {
	t.Helper()

	// Create temp dir for fake home
	tmpHome := t.TempDir()

	// Save original HOME
	originalHome := os.Getenv("HOME")

	// Set HOME to temp dir
	os.Setenv("HOME", tmpHome)

	// Return cleanup function
	cleanup := func() {
		if originalHome != "" {
			os.Setenv("HOME", originalHome)
		} else {
			os.Unsetenv("HOME")
		}
	}

	return tmpHome, cleanup
}

// TestLoadWithFile_ValidYAML tests loading configuration from a valid YAML file.
func TestLoadWithFile_ValidYAML(t *testing.T) {
	// Setup test home directory
	home, cleanup := setupTestHome(t)
	defer cleanup()

	// Create config directory in allowed location
	configDir := filepath.Join(home, ".config", "fold")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")

	yamlContent := `qdrant:
  host: qdrant.internal
  collection_name: custom_collection

observability:
  enable_telemetry: true
  service_name: fold-test
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Test: Load configuration from YAML
	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	// Verify configuration values from YAML
	if cfg.Qdrant.Host != "qdrant.internal" {
		t.Errorf("Qdrant.Host = %q, want qdrant.internal", cfg.Qdrant.Host)
	}
	if cfg.Qdrant.CollectionName != "custom_collection" {
		t.Errorf("Qdrant.CollectionName = %q, want custom_collection", cfg.Qdrant.CollectionName)
	}

	if cfg.Observability.ServiceName != "fold-test" {
		t.Errorf("Observability.ServiceName = %q, want %q", cfg.Observability.ServiceName, "fold-test")
	}

	if !cfg.Observability.EnableTelemetry {
		t.Error("Observability.EnableTelemetry = false, want true")
	}
}

// TestLoadWithFile_EnvironmentOverride tests that environment variables override YAML.
func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	// Setup test home directory
	home, cleanup := setupTestHome(t)
	defer cleanup()

	// Create config directory in allowed location
	configDir := filepath.Join(home, ".config", "fold")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")

	yamlContent := `qdrant:
  collection_name: yaml_collection

observability:
  enable_telemetry: false
  service_name: yaml-service
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Set environment variables (should override YAML)
	os.Setenv("QDRANT_COLLECTION_NAME", "env_collection")
	os.Setenv("OBSERVABILITY_SERVICE_NAME", "env-service")
	defer os.Unsetenv("QDRANT_COLLECTION_NAME")
	defer os.Unsetenv("OBSERVABILITY_SERVICE_NAME")

	// Load config
	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	// Verify environment variables override YAML
	if cfg.Qdrant.CollectionName != "env_collection" {
		t.Errorf("Qdrant.CollectionName = %q, want env_collection (from env override)", cfg.Qdrant.CollectionName)
	}

	if cfg.Observability.ServiceName != "env-service" {
		t.Errorf("Observability.ServiceName = %q, want %q (from env override)", cfg.Observability.ServiceName, "env-service")
	}
}

// TestLoadWithFile_DefaultPath tests using default config path.
func TestLoadWithFile_DefaultPath(t *testing.T) {
	// Create config directory
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	configDir := filepath.Join(home, ".config", "fold")
	configPath := filepath.Join(configDir, "config.yaml")

	// Check if config file exists (real file from user)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Skip("No config file at default path")
	}

	// Test: Load with empty path (should use default)
	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile(\"\") error = %v, want nil", err)
	}

	// Just verify it loaded without error and has a usable collection name
	if cfg.Qdrant.CollectionName == "" {
		t.Error("Qdrant.CollectionName is empty, want a default value")
	}
}

// TestLoadWithFile_MissingFile tests handling of missing config file.
func TestLoadWithFile_MissingFile(t *testing.T) {
	// Setup test home directory
	home, cleanup := setupTestHome(t)
	defer cleanup()

	// Test with path in allowed directory (but file doesn't exist)
	configPath := filepath.Join(home, ".config", "fold", "config.yaml")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() should not error on missing file, got: %v", err)
	}

	// Should have default values (need to set defaults in loader)
	if cfg == nil {
		t.Error("LoadWithFile() returned nil config for missing file")
	}
}

// TestLoadWithFile_InvalidYAML tests handling of malformed YAML.
func TestLoadWithFile_InvalidYAML(t *testing.T) {
	// Create invalid YAML file in the allowed location, so the YAML parser
	// rather than the path check is what rejects it
	home, cleanup := setupTestHome(t)
	defer cleanup()
	configDir := filepath.Join(home, ".config", "fold")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	invalidYAML := `qdrant:
  port: not-a-number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Test: Load invalid YAML (should return error)
	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("LoadWithFile() should error on invalid YAML, got nil")
	}
}

// TestLoadWithFile_Validation tests configuration validation.
func TestLoadWithFile_Validation(t *testing.T) {
	// Create YAML with an invalid embeddings base URL scheme in the allowed
	// location, so validation rather than the path check rejects it
	home, cleanup := setupTestHome(t)
	defer cleanup()
	configDir := filepath.Join(home, ".config", "fold")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	yamlContent := `embeddings:
  base_url: ftp://malicious.example

observability:
  service_name: test
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Test: Load config with invalid embeddings URL (should fail validation)
	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("LoadWithFile() should error on invalid embeddings base URL, got nil")
	}
}

// TestLoadWithFile_PathTraversal tests path traversal attack prevention.
func TestLoadWithFile_PathTraversal(t *testing.T) {
	// Setup test home directory
	_, cleanup := setupTestHome(t)
	defer cleanup()

	// Test: Reject ../../../../etc/passwd
	_, err := LoadWithFile("../../../../etc/passwd")
	if err == nil {
		t.Error("Expected error for path traversal, got nil")
	}
	if !strings.Contains(err.Error(), "must be in ~/.config/fold/ or /etc/fold/") {
		t.Errorf("Expected path validation error, got: %v", err)
	}
}

// TestLoadWithFile_InsecurePermissions tests file permission enforcement.
func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	// Setup test home directory
	home, cleanup := setupTestHome(t)
	defer cleanup()

	// Create config directory in allowed location
	configDir := filepath.Join(home, ".config", "fold")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")

	yamlContent := `observability:
  service_name: fold-test
`

	// Write with insecure permissions (0644 - world readable)
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("Expected error for insecure permissions, got nil")
	}
	if !strings.Contains(err.Error(), "insecure") && !strings.Contains(err.Error(), "permissions") {
		t.Errorf("Expected 'insecure permissions' error, got: %v", err)
	}
}

// TestLoadWithFile_SecurePermissions tests that 0600 permissions are accepted.
func TestLoadWithFile_SecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	// Setup test home directory
	home, cleanup := setupTestHome(t)
	defer cleanup()

	// Create config directory in allowed location
	configDir := filepath.Join(home, ".config", "fold")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")

	yamlContent := `observability:
  service_name: fold-test
`

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() should succeed with 0600 permissions, got error: %v", err)
	}

	if cfg.Observability.ServiceName != "fold-test" {
		t.Errorf("Observability.ServiceName = %q, want fold-test", cfg.Observability.ServiceName)
	}
}

// TestLoadWithFile_FileTooLarge tests file size limit enforcement.
func TestLoadWithFile_FileTooLarge(t *testing.T) {
	// Setup test home directory
	home, cleanup := setupTestHome(t)
	defer cleanup()

	// Create config directory in allowed location
	configDir := filepath.Join(home, ".config", "fold")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")

	// Create 2MB file (exceeds 1MB limit)
	largeContent := bytes.Repeat([]byte("# comment line\n"), 150000)
	if err := os.WriteFile(configPath, largeContent, 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("Expected error for large file, got nil")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected 'too large' error, got: %v", err)
	}
}
