// Package config provides configuration loading for fold.
//
// Configuration is loaded from environment variables with sensible defaults,
// covering observability, storage, embeddings, indexing, and the other
// component-level settings fold's components read at startup.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete fold configuration.
type Config struct {
	Observability ObservabilityConfig
	VectorStore   VectorStoreConfig
	Qdrant        QdrantConfig
	Embeddings    EmbeddingsConfig
	Repository    RepositoryConfig
	Indexing      IndexingConfig
	Queue         QueueConfig
	Decay         DecayConfig
	LLM           LLMConfig
}

// LLMConfig holds the single-provider LLM configuration most deployments
// need; internal/llm.Client also accepts multiple ProviderConfig values for
// priority-ordered failover, which this section does not expose directly.
type LLMConfig struct {
	// Kind selects the provider shape: "openai-compat", "anthropic",
	// "gemini", or "openrouter". Empty disables LLM calls entirely, which
	// routes every indexed file through the indexer's synthesized-summary
	// fallback (spec §4.9 step 5).
	Kind     string        `koanf:"kind"`
	APIKey   string        `koanf:"api_key"`
	Endpoint string        `koanf:"endpoint"`
	Model    string        `koanf:"model"`
	Timeout  time.Duration `koanf:"timeout"`
}

// IndexingConfig holds the Indexer's (C9) walk/skip configuration.
type IndexingConfig struct {
	// Include is the set of glob patterns a path must match at least one
	// of to be considered. Default: ["**/*"].
	Include []string `koanf:"include"`

	// Exclude is checked before Include; any match skips the path.
	Exclude []string `koanf:"exclude"`

	// Concurrency bounds the fan-out across files during index_repository.
	// Clamped to [1, 64]. Default: 4.
	Concurrency int `koanf:"concurrency"`

	// MaxFileBytes skips any file larger than this. Default: 100000.
	MaxFileBytes int64 `koanf:"max_file_bytes"`
}

// QueueConfig holds the job queue worker pool's (C10) tuning parameters.
type QueueConfig struct {
	// Workers is the number of concurrent poll-claim-execute goroutines.
	// Default: 2.
	Workers int `koanf:"workers"`

	// HeartbeatIntervalSec refreshes a running job's locked_at. Default: 30.
	HeartbeatIntervalSec int `koanf:"heartbeat_interval_sec"`

	// StaleAfterSec is how long a job may go without a heartbeat before the
	// recovery sweep returns it to retry. Default: 300.
	StaleAfterSec int `koanf:"stale_after_sec"`

	// SweepIntervalSec is how often the recovery sweep runs. Default: 60.
	SweepIntervalSec int `koanf:"sweep_interval_sec"`

	// MaxRetries bounds attempts before a job is marked failed. Default: 3.
	MaxRetries int `koanf:"max_retries"`

	// BaseBackoffSec and MaxBackoffSec bound the exponential backoff
	// computed as min(base*2^n, max) +/- 25% jitter. Defaults: 60, 7200.
	BaseBackoffSec int `koanf:"base_backoff_sec"`
	MaxBackoffSec  int `koanf:"max_backoff_sec"`
}

// DecayConfig holds the project-level defaults blended into retrieval
// scoring by internal/decay, per spec §6.4. A project may override these
// per-project via foldcore.Project.Decay; these are the values Load()
// applies when a project record omits them.
type DecayConfig struct {
	// StrengthWeight balances decay-adjusted strength against raw
	// similarity in [0,1]. Default: 0.3.
	StrengthWeight float64 `koanf:"strength_weight"`

	// HalfLifeDays controls how quickly retrieval strength decays.
	// Default: 30.
	HalfLifeDays float64 `koanf:"half_life_days"`
}

// RepositoryConfig holds repository indexing configuration.
type RepositoryConfig struct {
	// IgnoreFiles is a list of ignore file names to parse from project root.
	// Patterns from these files are used as exclude patterns during indexing.
	// Default: [".gitignore", ".dockerignore", ".foldignore"]
	IgnoreFiles []string `koanf:"ignore_files"`

	// FallbackExcludes are used when no ignore files are found in the project.
	// Default: [".git/**", "node_modules/**", "vendor/**", "__pycache__/**"]
	FallbackExcludes []string `koanf:"fallback_excludes"`
}

// VectorStoreConfig holds vectorstore provider configuration.
type VectorStoreConfig struct {
	Provider string        `koanf:"provider"` // "chromem" or "qdrant" (default: "chromem")
	Chromem  ChromemConfig `koanf:"chromem"`
}

// Validate validates VectorStoreConfig.
func (c *VectorStoreConfig) Validate() error {
	switch c.Provider {
	case "chromem":
		return c.Chromem.Validate()
	case "qdrant":
		// Qdrant validation handled elsewhere
		return nil
	default:
		return fmt.Errorf("unsupported provider: %s (supported: chromem, qdrant)", c.Provider)
	}
}

// ChromemConfig holds chromem-go embedded vector database configuration.
// chromem-go is a pure Go, embedded vector database with zero third-party dependencies.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/fold/vectorstore"
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	// Default: false
	Compress bool `koanf:"compress"`

	// DefaultCollection is the default collection name.
	// Default: "fold_default"
	DefaultCollection string `koanf:"default_collection"`

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	// Default: 384 (for FastEmbed bge-small-en-v1.5)
	VectorSize int `koanf:"vector_size"`
}

// Validate validates ChromemConfig.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("vector_size must be positive, got %d", c.VectorSize)
	}
	return nil
}

// QdrantConfig holds Qdrant vector database configuration.
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	HTTPPort       int    `koanf:"http_port"`
	CollectionName string `koanf:"collection_name"`
	VectorSize     uint64 `koanf:"vector_size"`
	DataPath       string `koanf:"data_path"`
}

// EmbeddingsConfig holds embeddings service configuration.
type EmbeddingsConfig struct {
	Provider    string `koanf:"provider"` // "fastembed" or "tei"
	BaseURL     string `koanf:"base_url"` // TEI URL (if using TEI)
	Model       string `koanf:"model"`
	CacheDir    string `koanf:"cache_dir"`    // Model cache directory (for fastembed)
	ONNXVersion string `koanf:"onnx_version"` // Optional ONNX runtime version override
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry   bool   `koanf:"enable_telemetry"`
	ServiceName       string `koanf:"service_name"`
	OTLPEndpoint      string `koanf:"otlp_endpoint"`        // OTLP endpoint (default: localhost:4317)
	OTLPProtocol      string `koanf:"otlp_protocol"`        // "grpc" or "http/protobuf" (default: grpc)
	OTLPInsecure      bool   `koanf:"otlp_insecure"`        // Use insecure connection (default: true for localhost)
	OTLPTLSSkipVerify bool   `koanf:"otlp_tls_skip_verify"` // Skip TLS verification for internal CAs
}

// Load loads configuration from environment variables with defaults.
//
// Quick Start - Most commonly configured env vars:
//
//   - FOLD_DATA_PATH: Base data path (default: /data)
//   - EMBEDDINGS_PROVIDER: fastembed (default, local) or tei (remote)
//   - EMBEDDINGS_CACHE_DIR: Model cache directory (default: ./local_cache)
//   - VECTORSTORE_PROVIDER: chromem (default, embedded) or qdrant (external)
//
// All environment variables:
//
// Qdrant:
//   - QDRANT_HOST: Qdrant host (default: localhost)
//   - QDRANT_PORT: Qdrant gRPC port (default: 6334)
//   - QDRANT_HTTP_PORT: Qdrant HTTP port (default: 6333)
//   - QDRANT_COLLECTION: Default collection name (default: fold_default)
//   - QDRANT_VECTOR_SIZE: Vector dimensions (default: 384 for FastEmbed)
//   - FOLD_DATA_PATH: Base data path (default: /data)
//
// Embeddings:
//   - EMBEDDINGS_PROVIDER: Provider type: fastembed or tei (default: fastembed)
//   - EMBEDDINGS_MODEL: Embedding model (default: BAAI/bge-small-en-v1.5)
//   - EMBEDDING_BASE_URL: TEI URL if using TEI (default: http://localhost:8080)
//   - EMBEDDINGS_CACHE_DIR: Model cache directory for fastembed (default: ./local_cache)
//
// Repository:
//   - REPOSITORY_IGNORE_FILES: Comma-separated ignore file names (default: .gitignore,.dockerignore,.foldignore)
//   - REPOSITORY_FALLBACK_EXCLUDES: Comma-separated fallback exclude globs
//
// Indexing/Queue/Decay/LLM: see IndexingConfig, QueueConfig, DecayConfig, LLMConfig.
//
// Telemetry:
//   - OTEL_ENABLE: Enable OpenTelemetry (default: false, requires OTEL collector)
//   - OTEL_SERVICE_NAME: Service name for traces (default: fold)
//   - OTEL_OTLP_ENDPOINT: Collector endpoint (default: localhost:4317)
//   - OTEL_OTLP_PROTOCOL: "grpc" or "http/protobuf" (default: grpc)
//   - OTEL_OTLP_INSECURE: Skip TLS for the OTLP connection (default: true)
//   - OTEL_OTLP_TLS_SKIP_VERIFY: Skip TLS cert verification (default: false)
//
// Example:
//
//	cfg := config.Load()
//	fmt.Println("Qdrant host:", cfg.Qdrant.Host)
func Load() *Config {
	cfg := &Config{
		Observability: ObservabilityConfig{
			EnableTelemetry:   getEnvBool("OTEL_ENABLE", false),
			ServiceName:       getEnvString("OTEL_SERVICE_NAME", "fold"),
			OTLPEndpoint:      getEnvString("OTEL_OTLP_ENDPOINT", "localhost:4317"),
			OTLPProtocol:      getEnvString("OTEL_OTLP_PROTOCOL", "grpc"),
			OTLPInsecure:      getEnvBool("OTEL_OTLP_INSECURE", true),
			OTLPTLSSkipVerify: getEnvBool("OTEL_OTLP_TLS_SKIP_VERIFY", false),
		},
	}

	// Qdrant configuration
	cfg.Qdrant = QdrantConfig{
		Host:           getEnvString("QDRANT_HOST", "localhost"),
		Port:           getEnvInt("QDRANT_PORT", 6334),
		HTTPPort:       getEnvInt("QDRANT_HTTP_PORT", 6333),
		CollectionName: getEnvString("QDRANT_COLLECTION", "fold_default"),
		VectorSize:     uint64(getEnvInt("QDRANT_VECTOR_SIZE", 384)), // FastEmbed default
		DataPath:       getEnvString("FOLD_DATA_PATH", "/data"),
	}

	// Embeddings configuration
	cfg.Embeddings = EmbeddingsConfig{
		Provider:    getEnvString("EMBEDDINGS_PROVIDER", "fastembed"),
		BaseURL:     getEnvString("EMBEDDING_BASE_URL", "http://localhost:8080"),
		Model:       getEnvString("EMBEDDINGS_MODEL", "BAAI/bge-small-en-v1.5"),
		CacheDir:    getEnvString("EMBEDDINGS_CACHE_DIR", ""),
		ONNXVersion: getEnvString("EMBEDDINGS_ONNX_VERSION", ""),
	}

	// Repository indexing configuration
	cfg.Repository = RepositoryConfig{
		IgnoreFiles: getEnvStringSlice("REPOSITORY_IGNORE_FILES", []string{
			".gitignore",
			".dockerignore",
			".foldignore",
		}),
		FallbackExcludes: getEnvStringSlice("REPOSITORY_FALLBACK_EXCLUDES", []string{
			".git/**",
			"node_modules/**",
			"vendor/**",
			"__pycache__/**",
		}),
	}

	// VectorStore configuration (chromem is default - embedded, no external deps)
	cfg.VectorStore = VectorStoreConfig{
		Provider: getEnvString("FOLD_VECTORSTORE_PROVIDER", "chromem"),
		Chromem: ChromemConfig{
			Path:              getEnvString("FOLD_VECTORSTORE_CHROMEM_PATH", "~/.config/fold/vectorstore"),
			Compress:          getEnvBool("FOLD_VECTORSTORE_CHROMEM_COMPRESS", false),
			DefaultCollection: getEnvString("FOLD_VECTORSTORE_CHROMEM_COLLECTION", "fold_default"),
			VectorSize:        getEnvInt("FOLD_VECTORSTORE_CHROMEM_VECTOR_SIZE", 384),
		},
	}

	// Indexer configuration
	cfg.Indexing = IndexingConfig{
		Include:      getEnvStringSlice("INDEXING_INCLUDE", []string{"**/*"}),
		Exclude:      getEnvStringSlice("INDEXING_EXCLUDE", nil),
		Concurrency:  getEnvInt("INDEXING_CONCURRENCY", 4),
		MaxFileBytes: int64(getEnvInt("INDEXING_MAX_FILE_BYTES", 100_000)),
	}

	// Job queue configuration
	cfg.Queue = QueueConfig{
		Workers:              getEnvInt("QUEUE_WORKERS", 2),
		HeartbeatIntervalSec: getEnvInt("QUEUE_HEARTBEAT_INTERVAL_SEC", 30),
		StaleAfterSec:        getEnvInt("QUEUE_STALE_AFTER_SEC", 300),
		SweepIntervalSec:     getEnvInt("QUEUE_SWEEP_INTERVAL_SEC", 60),
		MaxRetries:           getEnvInt("QUEUE_MAX_RETRIES", 3),
		BaseBackoffSec:       getEnvInt("QUEUE_BASE_BACKOFF_SEC", 60),
		MaxBackoffSec:        getEnvInt("QUEUE_MAX_BACKOFF_SEC", 7200),
	}

	// LLM configuration (single provider; empty Kind disables LLM calls)
	cfg.LLM = LLMConfig{
		Kind:     getEnvString("LLM_KIND", ""),
		APIKey:   getEnvString("LLM_API_KEY", ""),
		Endpoint: getEnvString("LLM_ENDPOINT", ""),
		Model:    getEnvString("LLM_MODEL", ""),
		Timeout:  getEnvDuration("LLM_TIMEOUT", 60*time.Second),
	}

	// Decay configuration (project-level defaults)
	cfg.Decay = DecayConfig{
		StrengthWeight: getEnvFloat("DECAY_STRENGTH_WEIGHT", 0.3),
		HalfLifeDays:   getEnvFloat("DECAY_HALF_LIFE_DAYS", 30),
	}

	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Service name is empty (when telemetry is enabled)
//   - Any environment-sourced hostname, path, or URL fails its safety check
func (c *Config) Validate() error {
	// Validate observability configuration
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	// Validate environment variable inputs
	if err := validateHostname(c.Qdrant.Host); err != nil {
		return fmt.Errorf("invalid QDRANT_HOST: %w", err)
	}

	if err := validatePath(c.Qdrant.DataPath); err != nil {
		return fmt.Errorf("invalid FOLD_DATA_PATH: %w", err)
	}

	if err := validatePath(c.VectorStore.Chromem.Path); err != nil {
		return fmt.Errorf("invalid FOLD_VECTORSTORE_CHROMEM_PATH: %w", err)
	}

	if c.Embeddings.CacheDir != "" {
		if err := validatePath(c.Embeddings.CacheDir); err != nil {
			return fmt.Errorf("invalid EMBEDDINGS_CACHE_DIR: %w", err)
		}
	}

	if c.Embeddings.BaseURL != "" {
		if err := validateURL(c.Embeddings.BaseURL); err != nil {
			return fmt.Errorf("invalid EMBEDDING_BASE_URL: %w", err)
		}
	}

	// Indexing/Queue/Decay are validated only once populated (zero value
	// means "unset, Load() will apply defaults"), so a Config literal built
	// by hand for an unrelated test case doesn't need every section filled in.
	if c.Indexing.Concurrency != 0 && (c.Indexing.Concurrency < 1 || c.Indexing.Concurrency > 64) {
		return fmt.Errorf("INDEXING_CONCURRENCY must be in [1,64], got %d", c.Indexing.Concurrency)
	}
	if c.Indexing.MaxFileBytes < 0 {
		return fmt.Errorf("INDEXING_MAX_FILE_BYTES must be positive, got %d", c.Indexing.MaxFileBytes)
	}

	if c.Queue.Workers < 0 {
		return fmt.Errorf("QUEUE_WORKERS must be at least 1, got %d", c.Queue.Workers)
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("QUEUE_MAX_RETRIES must be at least 1, got %d", c.Queue.MaxRetries)
	}
	if c.Queue.BaseBackoffSec != 0 && c.Queue.MaxBackoffSec != 0 && c.Queue.MaxBackoffSec < c.Queue.BaseBackoffSec {
		return fmt.Errorf("QUEUE_BASE_BACKOFF_SEC/QUEUE_MAX_BACKOFF_SEC must satisfy 0 < base <= max")
	}

	if c.Decay.StrengthWeight < 0 || c.Decay.StrengthWeight > 1 {
		return fmt.Errorf("DECAY_STRENGTH_WEIGHT must be in [0,1], got %f", c.Decay.StrengthWeight)
	}
	if c.Decay.HalfLifeDays < 0 {
		return fmt.Errorf("DECAY_HALF_LIFE_DAYS must be positive, got %f", c.Decay.HalfLifeDays)
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Split by comma, trim whitespace
		parts := make([]string, 0)
		for _, part := range splitAndTrim(value, ",") {
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var result []string
	for _, part := range strings.Split(s, sep) {
		trimmed := strings.TrimSpace(part)
		result = append(result, trimmed)
	}
	return result
}

// validateHostname checks if a hostname is safe (no command injection attempts).
// Uses positive validation with net.ParseIP for IP addresses and regexp for hostnames.
func validateHostname(host string) error {
	// Empty hostname is allowed (config may use defaults)
	if host == "" {
		return nil
	}

	// Try parsing as IP first
	if net.ParseIP(host) != nil {
		return nil // Valid IP address
	}

	// Validate hostname format (RFC 1123)
	// Allow alphanumeric, dots, hyphens. Must not start/end with dash.
	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %s", host)
	}

	// Additional blacklist check for shell metacharacters (defense in depth)
	invalidChars := []string{";", "\n", "\r", "$", "`", "|", "&", "<", ">", "(", ")"}
	for _, char := range invalidChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("invalid hostname: contains forbidden character %q", char)
		}
	}
	return nil
}

// validatePath checks if a path is safe (no path traversal)
func validatePath(path string) error {
	// Check for path traversal sequences
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}

	// For absolute paths, verify the cleaned path doesn't escape
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		// Count directory depth - compare original vs cleaned
		// If cleaned has fewer separators, upward traversal occurred
		origDepth := strings.Count(path, string(filepath.Separator))
		cleanDepth := strings.Count(clean, string(filepath.Separator))

		if cleanDepth < origDepth-1 {
			return fmt.Errorf("path traversal detected: %s (resolves to %s)", path, clean)
		}
	}

	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only)
func validateURL(urlStr string) error {
	// Only allow http and https schemes
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}
