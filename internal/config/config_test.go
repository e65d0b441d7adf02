package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("JWT_ACCESS_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
	t.Setenv("JWT_ACCESS_EXPIRES_IN", "")
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("FRONTEND_URL", "http://example.com/")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "http://example.com", cfg.FrontendURL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_Durations(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_ACCESS_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
	t.Setenv("JWT_ACCESS_EXPIRES_IN", "90")
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "48h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.AccessTokenTTL)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTokenTTL)
}

func TestConfig_Validate(t *testing.T) {
	long := "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "missing secrets",
			cfg:     Config{Env: EnvDevelopment, AuthRateLimit: 1},
			wantErr: true,
		},
		{
			name:    "development allows short secrets",
			cfg:     Config{Env: EnvDevelopment, JWTAccessSecret: "a", JWTRefreshSecret: "a", AuthRateLimit: 1},
			wantErr: false,
		},
		{
			name:    "production rejects shared secret",
			cfg:     Config{Env: EnvProduction, JWTAccessSecret: long, JWTRefreshSecret: long, AuthRateLimit: 1},
			wantErr: true,
		},
		{
			name:    "production rejects short secrets",
			cfg:     Config{Env: EnvProduction, JWTAccessSecret: "short", JWTRefreshSecret: "other", AuthRateLimit: 1},
			wantErr: true,
		},
		{
			name:    "production ok",
			cfg:     Config{Env: EnvProduction, JWTAccessSecret: long, JWTRefreshSecret: long + "x", AuthRateLimit: 1},
			wantErr: false,
		},
		{
			name:    "unknown env",
			cfg:     Config{Env: "staging", JWTAccessSecret: "a", JWTRefreshSecret: "b", AuthRateLimit: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
