package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfigDefaults(t *testing.T) {
	t.Setenv("LOCALMART_CREDENTIALS", "memory")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	assert.Equal(t, "memory", cfg.Credentials)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ValidateInterval)
	assert.Equal(t, 2*time.Second, cfg.ReconnectBaseDelay)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 8, cfg.MinPasswordLength)
	assert.False(t, cfg.AutoLoginAfterRegister)
	assert.Equal(t, ChatSocket, cfg.ChatStrategy)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadClientConfigOverrides(t *testing.T) {
	t.Setenv("LOCALMART_API_URL", "https://market.example.com/api/")
	t.Setenv("LOCALMART_CREDENTIALS", "redis://localhost:6379/0")
	t.Setenv("LOCALMART_REQUEST_TIMEOUT", "5s")
	t.Setenv("LOCALMART_AUTO_LOGIN_AFTER_REGISTER", "true")
	t.Setenv("LOCALMART_MIN_PASSWORD_LENGTH", "0")
	t.Setenv("LOCALMART_CHAT_STRATEGY", "POLLING")
	t.Setenv("LOCALMART_POLL_INTERVAL", "15s")
	t.Setenv("LOCALMART_MAX_RECONNECT_ATTEMPTS", "30")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://market.example.com/api", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.AutoLoginAfterRegister)
	assert.Equal(t, 0, cfg.MinPasswordLength)
	assert.Equal(t, ChatPolling, cfg.ChatStrategy)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 30, cfg.MaxReconnectAttempts)
}

func TestLoadClientConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"LOCALMART_API_URL":                "ftp://example.com",
		"LOCALMART_REQUEST_TIMEOUT":        "-1s",
		"LOCALMART_CHAT_STRATEGY":          "carrier-pigeon",
		"LOCALMART_VALIDATE_INTERVAL":      "soon",
		"LOCALMART_POLL_INTERVAL":          "0s",
		"LOCALMART_MAX_RECONNECT_ATTEMPTS": "34",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("LOCALMART_CREDENTIALS", "memory")
			t.Setenv(key, value)
			_, err := LoadClientConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := LoadServerConfig()
	assert.Error(t, err, "production requires a secret")

	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.NotEmpty(t, cfg.JWTSecret)

	t.Setenv("PORT", "80")
	_, err = LoadServerConfig()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOCALMART_TEST_DOTENV=from-file\n"), 0o600))

	t.Setenv("LOCALMART_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("LOCALMART_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("LOCALMART_TEST_DOTENV"))
	require.NoError(t, os.Unsetenv("LOCALMART_TEST_DOTENV"))
}
