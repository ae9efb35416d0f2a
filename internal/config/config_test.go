package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	// Save original environment and restore after test
	originalEnv := saveEnv()
	defer restoreEnv(originalEnv)

	tests := []struct {
		name     string
		env      map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Observability.EnableTelemetry {
					t.Error("Observability.EnableTelemetry = true, want false (disabled by default)")
				}
				if cfg.Observability.ServiceName != "fold" {
					t.Errorf("Observability.ServiceName = %q, want fold", cfg.Observability.ServiceName)
				}
				if len(cfg.Repository.IgnoreFiles) != 3 {
					t.Errorf("Repository.IgnoreFiles = %v, want 3 default entries", cfg.Repository.IgnoreFiles)
				}
			},
		},
		{
			name: "environment variable overrides",
			env: map[string]string{
				"OTEL_ENABLE":       "false",
				"OTEL_SERVICE_NAME": "test-service",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Observability.EnableTelemetry {
					t.Error("Observability.EnableTelemetry = true, want false")
				}
				if cfg.Observability.ServiceName != "test-service" {
					t.Errorf("Observability.ServiceName = %q, want test-service", cfg.Observability.ServiceName)
				}
			},
		},
		{
			name: "repository environment overrides",
			env: map[string]string{
				"REPOSITORY_IGNORE_FILES":     ".gitignore,.foldignore",
				"REPOSITORY_FALLBACK_EXCLUDES": "vendor/**",
			},
			validate: func(t *testing.T, cfg *Config) {
				if len(cfg.Repository.IgnoreFiles) != 2 {
					t.Errorf("Repository.IgnoreFiles = %v, want 2 entries", cfg.Repository.IgnoreFiles)
				}
				if len(cfg.Repository.FallbackExcludes) != 1 || cfg.Repository.FallbackExcludes[0] != "vendor/**" {
					t.Errorf("Repository.FallbackExcludes = %v, want [vendor/**]", cfg.Repository.FallbackExcludes)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear and set environment
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg := Load()
			if cfg == nil {
				t.Fatal("Load() returned nil")
			}

			tt.validate(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &Config{
				Observability: ObservabilityConfig{
					EnableTelemetry: true,
					ServiceName:     "fold",
				},
			},
			wantErr: false,
		},
		{
			name: "empty service name",
			cfg: &Config{
				Observability: ObservabilityConfig{
					EnableTelemetry: true,
					ServiceName:     "",
				},
			},
			wantErr: true,
		},
		{
			name: "invalid embedding base URL scheme",
			cfg: &Config{
				Embeddings: EmbeddingsConfig{
					BaseURL: "ftp://malicious.example",
				},
			},
			wantErr: true,
		},
		{
			name: "invalid indexing concurrency",
			cfg: &Config{
				Indexing: IndexingConfig{Concurrency: 100},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestLoad_VectorStoreConfig tests VectorStore configuration loading
func TestLoad_VectorStoreConfig(t *testing.T) {
	originalEnv := saveEnv()
	defer restoreEnv(originalEnv)

	tests := []struct {
		name     string
		env      map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "vectorstore defaults - chromem provider with 384d",
			env:  map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				// Default provider should be chromem
				if cfg.VectorStore.Provider != "chromem" {
					t.Errorf("VectorStore.Provider = %q, want chromem", cfg.VectorStore.Provider)
				}
				// Default path
				if cfg.VectorStore.Chromem.Path != "~/.config/fold/vectorstore" {
					t.Errorf("VectorStore.Chromem.Path = %q, want ~/.config/fold/vectorstore", cfg.VectorStore.Chromem.Path)
				}
				// Default compress (false to match existing uncompressed data)
				if cfg.VectorStore.Chromem.Compress {
					t.Error("VectorStore.Chromem.Compress should be false by default")
				}
				// Default collection
				if cfg.VectorStore.Chromem.DefaultCollection != "fold_default" {
					t.Errorf("VectorStore.Chromem.DefaultCollection = %q, want fold_default", cfg.VectorStore.Chromem.DefaultCollection)
				}
				// Default vector size - 384 for FastEmbed
				if cfg.VectorStore.Chromem.VectorSize != 384 {
					t.Errorf("VectorStore.Chromem.VectorSize = %d, want 384", cfg.VectorStore.Chromem.VectorSize)
				}
			},
		},
		{
			name: "vectorstore environment overrides",
			env: map[string]string{
				"FOLD_VECTORSTORE_PROVIDER":            "qdrant",
				"FOLD_VECTORSTORE_CHROMEM_PATH":        "/custom/path/vectorstore",
				"FOLD_VECTORSTORE_CHROMEM_COMPRESS":    "false",
				"FOLD_VECTORSTORE_CHROMEM_COLLECTION":  "custom_collection",
				"FOLD_VECTORSTORE_CHROMEM_VECTOR_SIZE": "768",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.VectorStore.Provider != "qdrant" {
					t.Errorf("VectorStore.Provider = %q, want qdrant", cfg.VectorStore.Provider)
				}
				if cfg.VectorStore.Chromem.Path != "/custom/path/vectorstore" {
					t.Errorf("VectorStore.Chromem.Path = %q, want /custom/path/vectorstore", cfg.VectorStore.Chromem.Path)
				}
				if cfg.VectorStore.Chromem.Compress {
					t.Error("VectorStore.Chromem.Compress should be false when overridden")
				}
				if cfg.VectorStore.Chromem.DefaultCollection != "custom_collection" {
					t.Errorf("VectorStore.Chromem.DefaultCollection = %q, want custom_collection", cfg.VectorStore.Chromem.DefaultCollection)
				}
				if cfg.VectorStore.Chromem.VectorSize != 768 {
					t.Errorf("VectorStore.Chromem.VectorSize = %d, want 768", cfg.VectorStore.Chromem.VectorSize)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg := Load()
			if cfg == nil {
				t.Fatal("Load() returned nil")
			}

			tt.validate(t, cfg)
		})
	}
}

// TestChromemConfig_Validate tests ChromemConfig validation
func TestChromemConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChromemConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid - 384d",
			cfg: ChromemConfig{
				Path:              "~/.config/fold/vectorstore",
				Compress:          true,
				DefaultCollection: "fold_default",
				VectorSize:        384,
			},
			wantErr: false,
		},
		{
			name: "valid - 768d",
			cfg: ChromemConfig{
				Path:              "/custom/path",
				Compress:          false,
				DefaultCollection: "custom",
				VectorSize:        768,
			},
			wantErr: false,
		},
		{
			name: "invalid - zero vector size",
			cfg: ChromemConfig{
				Path:              "~/.config/fold/vectorstore",
				DefaultCollection: "fold_default",
				VectorSize:        0,
			},
			wantErr: true,
			errMsg:  "vector_size must be positive",
		},
		{
			name: "invalid - negative vector size",
			cfg: ChromemConfig{
				Path:              "~/.config/fold/vectorstore",
				DefaultCollection: "fold_default",
				VectorSize:        -1,
			},
			wantErr: true,
			errMsg:  "vector_size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil && tt.errMsg != "" {
				if !contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %q, want to contain %q", err.Error(), tt.errMsg)
				}
			}
		})
	}
}

// TestVectorStoreConfig_Validate tests VectorStoreConfig validation
func TestVectorStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     VectorStoreConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid chromem config",
			cfg: VectorStoreConfig{
				Provider: "chromem",
				Chromem: ChromemConfig{
					Path:              "~/.config/fold/vectorstore",
					Compress:          true,
					DefaultCollection: "fold_default",
					VectorSize:        384,
				},
			},
			wantErr: false,
		},
		{
			name: "valid qdrant config",
			cfg: VectorStoreConfig{
				Provider: "qdrant",
			},
			wantErr: false,
		},
		{
			name: "invalid provider",
			cfg: VectorStoreConfig{
				Provider: "unknown",
			},
			wantErr: true,
			errMsg:  "unsupported provider",
		},
		{
			name: "chromem with invalid vector size",
			cfg: VectorStoreConfig{
				Provider: "chromem",
				Chromem: ChromemConfig{
					Path:              "~/.config/fold/vectorstore",
					DefaultCollection: "fold_default",
					VectorSize:        0, // Invalid
				},
			},
			wantErr: true,
			errMsg:  "vector_size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil && tt.errMsg != "" {
				if !contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %q, want to contain %q", err.Error(), tt.errMsg)
				}
			}
		})
	}
}

// TestLoad_EmbeddingsONNXVersion tests ONNX version configuration loading
func TestLoad_EmbeddingsONNXVersion(t *testing.T) {
	originalEnv := saveEnv()
	defer restoreEnv(originalEnv)

	tests := []struct {
		name     string
		env      map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "onnx version default empty",
			env:  map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				// Default should be empty (uses DefaultONNXRuntimeVersion from embeddings)
				if cfg.Embeddings.ONNXVersion != "" {
					t.Errorf("Embeddings.ONNXVersion = %q, want empty string", cfg.Embeddings.ONNXVersion)
				}
			},
		},
		{
			name: "onnx version environment override",
			env: map[string]string{
				"EMBEDDINGS_ONNX_VERSION": "1.20.0",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Embeddings.ONNXVersion != "1.20.0" {
					t.Errorf("Embeddings.ONNXVersion = %q, want 1.20.0", cfg.Embeddings.ONNXVersion)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg := Load()
			if cfg == nil {
				t.Fatal("Load() returned nil")
			}

			tt.validate(t, cfg)
		})
	}
}

// TestLoad_IndexingQueueDecayConfig tests the indexer/queue/decay env
// overrides added alongside the indexer and job queue packages.
func TestLoad_IndexingQueueDecayConfig(t *testing.T) {
	originalEnv := saveEnv()
	defer restoreEnv(originalEnv)

	os.Clearenv()
	cfg := Load()

	if cfg.Indexing.Concurrency != 4 {
		t.Errorf("Indexing.Concurrency = %d, want 4", cfg.Indexing.Concurrency)
	}
	if cfg.Indexing.MaxFileBytes != 100_000 {
		t.Errorf("Indexing.MaxFileBytes = %d, want 100000", cfg.Indexing.MaxFileBytes)
	}
	if cfg.Queue.Workers != 2 {
		t.Errorf("Queue.Workers = %d, want 2", cfg.Queue.Workers)
	}
	if cfg.Queue.MaxRetries != 3 {
		t.Errorf("Queue.MaxRetries = %d, want 3", cfg.Queue.MaxRetries)
	}
	if cfg.Decay.StrengthWeight != 0.3 {
		t.Errorf("Decay.StrengthWeight = %v, want 0.3", cfg.Decay.StrengthWeight)
	}
	if cfg.Decay.HalfLifeDays != 30 {
		t.Errorf("Decay.HalfLifeDays = %v, want 30", cfg.Decay.HalfLifeDays)
	}

	os.Setenv("INDEXING_CONCURRENCY", "8")
	os.Setenv("QUEUE_WORKERS", "5")
	os.Setenv("DECAY_HALF_LIFE_DAYS", "14")
	cfg = Load()
	if cfg.Indexing.Concurrency != 8 {
		t.Errorf("Indexing.Concurrency = %d, want 8", cfg.Indexing.Concurrency)
	}
	if cfg.Queue.Workers != 5 {
		t.Errorf("Queue.Workers = %d, want 5", cfg.Queue.Workers)
	}
	if cfg.Decay.HalfLifeDays != 14 {
		t.Errorf("Decay.HalfLifeDays = %v, want 14", cfg.Decay.HalfLifeDays)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > 0 && containsAt(s, substr))
}

func containsAt(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Helper functions to save/restore environment
func saveEnv() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		env[e] = os.Getenv(e)
	}
	return env
}

func restoreEnv(env map[string]string) {
	os.Clearenv()
	for k, v := range env {
		os.Setenv(k, v)
	}
}
