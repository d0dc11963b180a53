/*
Package configs is responsible for loading and parsing the application's configuration settings.

Both binaries read operating system environment variables, optionally seeded from a
.env file. The client configuration covers the API origin, credential storage, request
timeout, token validation interval, chat reconnect policy and registration rules. The
dev API server configuration covers the running environment, port, CORS origins and
the JWT signing secret.
*/
package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files into the process environment.
// Variables that are already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// ChatStrategy selects the chat transport implementation.
type ChatStrategy string

const (
	// ChatSocket is the push transport over a WebSocket.
	ChatSocket ChatStrategy = "socket"

	// ChatPolling is the REST polling fallback.
	ChatPolling ChatStrategy = "polling"
)

// ClientConfig contains the parameters of the LocalMart client core.
type ClientConfig struct {
	// APIURL is the REST origin including its path prefix, e.g. http://localhost:8080/api.
	APIURL      string
	Environment string
	LogLevel    string

	// Credentials selects the credential store: a file path, "memory", or a redis:// URL.
	Credentials string

	RequestTimeout   time.Duration
	ValidateInterval time.Duration

	// Chat reconnect policy.
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	ChatStrategy         ChatStrategy

	// PollInterval is the fetch period of the polling chat strategy.
	PollInterval time.Duration

	// Registration rules. MinPasswordLength 0 disables the length check.
	MinPasswordLength      int
	AutoLoginAfterRegister bool
}

// IsDevelopment reports whether the client runs in the development environment.
func (c *ClientConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

const maxReconnectAttempts = 30

// LoadClientConfig reads the client configuration from environment variables,
// applying defaults and validating each value.
func LoadClientConfig() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	var err error

	cfg.APIURL = strings.TrimRight(envOr("LOCALMART_API_URL", "http://localhost:8080/api"), "/")
	parsed, err := url.Parse(cfg.APIURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid LOCALMART_API_URL %q: expected an http(s) origin", cfg.APIURL)
	}

	cfg.Environment = envOr("LOCALMART_ENV", "production")
	cfg.LogLevel = os.Getenv("LOCALMART_LOG_LEVEL")

	cfg.Credentials = os.Getenv("LOCALMART_CREDENTIALS")
	if cfg.Credentials == "" {
		cfg.Credentials, err = defaultCredentialsPath()
		if err != nil {
			return nil, err
		}
	}

	if cfg.RequestTimeout, err = envDuration("LOCALMART_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ValidateInterval, err = envDuration("LOCALMART_VALIDATE_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconnectBaseDelay, err = envDuration("LOCALMART_RECONNECT_BASE_DELAY", 2*time.Second); err != nil {
		return nil, err
	}

	if cfg.MaxReconnectAttempts, err = envInt("LOCALMART_MAX_RECONNECT_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.MaxReconnectAttempts < 0 || cfg.MaxReconnectAttempts > maxReconnectAttempts {
		return nil, fmt.Errorf("LOCALMART_MAX_RECONNECT_ATTEMPTS must be between 0 and %d, got %d",
			maxReconnectAttempts, cfg.MaxReconnectAttempts)
	}
	if cfg.PollInterval, err = envDuration("LOCALMART_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.MinPasswordLength, err = envInt("LOCALMART_MIN_PASSWORD_LENGTH", 8); err != nil {
		return nil, err
	}
	if cfg.MinPasswordLength < 0 {
		return nil, fmt.Errorf("LOCALMART_MIN_PASSWORD_LENGTH must not be negative, got %d", cfg.MinPasswordLength)
	}

	if cfg.AutoLoginAfterRegister, err = envBool("LOCALMART_AUTO_LOGIN_AFTER_REGISTER", false); err != nil {
		return nil, err
	}

	cfg.ChatStrategy = ChatStrategy(strings.ToLower(envOr("LOCALMART_CHAT_STRATEGY", string(ChatSocket))))
	switch cfg.ChatStrategy {
	case ChatSocket, ChatPolling:
	default:
		return nil, fmt.Errorf("invalid LOCALMART_CHAT_STRATEGY %q: expected socket or polling", cfg.ChatStrategy)
	}

	return cfg, nil
}

func defaultCredentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate a config directory for credentials, set LOCALMART_CREDENTIALS: %w", err)
	}
	return dir + string(os.PathSeparator) + "localmart" + string(os.PathSeparator) + "credentials.json", nil
}

// ServerConfig contains the parameters of the LocalMart dev API server.
type ServerConfig struct {
	Environment string
	Port        int

	AllowedOrigins []string
	JWTSecret      string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadServerConfig reads the dev API server configuration from environment variables.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	cfg.Environment = envOr("ENVIRONMENT", "development")

	port, err := envInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", port, 1024, 65535)
	}
	cfg.Port = port

	cfg.AllowedOrigins = []string{}
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		jwtSecret = "localmart_insecure_dev_secret_change_me"
	}
	cfg.JWTSecret = jwtSecret

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return v, nil
}
