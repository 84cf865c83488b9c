package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"virtual-tryon-backend/internal/config"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tryon?sslmode=disable")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_LOCAL_DIR", t.TempDir())
}

func TestLoad_RemoteDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VTON_BACKEND", "")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.BackendRemote, cfg.VTONBackend)
	assert.Equal(t, 768, cfg.VTONWidth)
	assert.Equal(t, 1024, cfg.VTONHeight)
	assert.Equal(t, 50, cfg.VTONSteps)
	assert.Equal(t, 2.5, cfg.VTONGuidance)
	assert.Equal(t, int64(-1), cfg.VTONSeed)
	assert.Equal(t, 2, cfg.TryonMaxAttempts)
}

func TestLoad_VertexAliasSelectsRemote(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VTON_BACKEND", "vertex_ai")
	t.Setenv("GENAI_USE_VERTEX", "true")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "proj")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.BackendRemote, cfg.VTONBackend)
	assert.True(t, cfg.GenAIUseVertex)
}

func TestLoad_LocalRequiresRuntimeURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VTON_BACKEND", "local")
	t.Setenv("VTON_RUNTIME_URL", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VTON_RUNTIME_URL")
}

func TestLoad_UnknownBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VTON_BACKEND", "quantum")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VTON_BACKEND")
}

func TestValidate_StorageBackends(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{
			name:    "supabase without url",
			cfg:     config.Config{StorageBackend: config.StorageSupabase},
			wantErr: "SUPABASE_URL",
		},
		{
			name:    "s3 without bucket",
			cfg:     config.Config{StorageBackend: config.StorageS3},
			wantErr: "AWS_S3_BUCKET",
		},
		{
			name:    "unknown",
			cfg:     config.Config{StorageBackend: "ftp"},
			wantErr: "STORAGE_BACKEND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.DatabaseURL = "postgres://x"
			cfg.JWTSecret = "s"
			cfg.VTONBackend = config.BackendRemote
			cfg.GeminiAPIKey = "k"

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
