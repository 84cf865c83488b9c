package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"

	StorageLocal    = "local"
	StorageSupabase = "supabase"
	StorageS3       = "s3"
)

type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string

	// Auth
	JWTSecret string

	// Synthesis backend selection
	VTONBackend string

	// Local diffusion backend
	VTONWidth          int
	VTONHeight         int
	VTONSteps          int
	VTONGuidance       float64
	VTONSeed           int64
	VTONRuntimeURL     string
	VTONRuntimeTimeout time.Duration
	VTONMaxConcurrent  int
	VTONBaseModel      string
	VTONAdapterModel   string
	VTONAdapterVersion string
	VTONMixedPrecision string
	VTONAllowTF32      bool
	VTONWarmup         bool

	// Remote generative backend
	GeminiAPIKey        string
	GeminiModel         string
	GoogleCloudProject  string
	GoogleCloudLocation string
	GenAIUseVertex      bool

	// Storage
	StorageBackend        string
	StorageLocalDir       string
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string
	AWSRegion             string
	AWSBucket             string

	// Try-on request policy
	TryonMaxAttempts int
	TryonTimeout     time.Duration
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		VTONBackend: normalizeBackend(getEnv("VTON_BACKEND", BackendRemote)),

		VTONWidth:          getEnvInt("VTON_WIDTH", 768),
		VTONHeight:         getEnvInt("VTON_HEIGHT", 1024),
		VTONSteps:          getEnvInt("VTON_STEPS", 50),
		VTONGuidance:       getEnvFloat("VTON_GUIDANCE", 2.5),
		VTONSeed:           int64(getEnvInt("VTON_SEED", -1)),
		VTONRuntimeURL:     getEnv("VTON_RUNTIME_URL", ""),
		VTONRuntimeTimeout: time.Second * time.Duration(getEnvInt("VTON_RUNTIME_TIMEOUT_SECONDS", 600)),
		VTONMaxConcurrent:  getEnvInt("VTON_MAX_CONCURRENT", 1),
		VTONBaseModel:      getEnv("VTON_BASE_MODEL", "booksforcharlie/stable-diffusion-inpainting"),
		VTONAdapterModel:   getEnv("VTON_ADAPTER_MODEL", "zhengchong/CatVTON"),
		VTONAdapterVersion: getEnv("VTON_ADAPTER_VERSION", "mix"),
		VTONMixedPrecision: getEnv("VTON_MIXED_PRECISION", "fp16"),
		VTONAllowTF32:      getEnvBool("VTON_ALLOW_TF32", true),
		VTONWarmup:         getEnvBool("VTON_WARMUP", false),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GoogleCloudProject:  getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation: getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
		GenAIUseVertex:      getEnvBool("GENAI_USE_VERTEX", false),

		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
		StorageLocalDir:       getEnv("STORAGE_LOCAL_DIR", "resources"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_ROLE_KEY", getEnv("SUPABASE_KEY", "")),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "tryon-images"),
		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		AWSBucket:             getEnv("AWS_S3_BUCKET", ""),

		TryonMaxAttempts: getEnvInt("TRYON_MAX_ATTEMPTS", 2),
		TryonTimeout:     time.Second * time.Duration(getEnvInt("TRYON_TIMEOUT_SECONDS", 300)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.VTONBackend {
	case BackendLocal:
		if c.VTONRuntimeURL == "" {
			return fmt.Errorf("VTON_RUNTIME_URL is required for the local backend")
		}
		if c.VTONWidth <= 0 || c.VTONHeight <= 0 {
			return fmt.Errorf("VTON_WIDTH and VTON_HEIGHT must be positive")
		}
		if c.VTONSteps <= 0 {
			return fmt.Errorf("VTON_STEPS must be positive")
		}
		if c.VTONMaxConcurrent <= 0 {
			return fmt.Errorf("VTON_MAX_CONCURRENT must be positive")
		}
	case BackendRemote:
		if c.GenAIUseVertex {
			if c.GoogleCloudProject == "" {
				return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when GENAI_USE_VERTEX is set")
			}
		} else if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the remote backend")
		}
	default:
		return fmt.Errorf("VTON_BACKEND must be %q or %q, got %q", BackendLocal, BackendRemote, c.VTONBackend)
	}

	switch c.StorageBackend {
	case StorageLocal:
		if c.StorageLocalDir == "" {
			return fmt.Errorf("STORAGE_LOCAL_DIR is required")
		}
	case StorageSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
		}
	case StorageS3:
		if c.AWSBucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.TryonMaxAttempts < 1 {
		c.TryonMaxAttempts = 1
	}
	return nil
}

// Older deployments set vertex_ai for the hosted model.
func normalizeBackend(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "local", "catvton", "diffusion":
		return BackendLocal
	case "remote", "vertex_ai", "vertex", "gemini":
		return BackendRemote
	default:
		return v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
