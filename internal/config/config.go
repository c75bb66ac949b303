package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Metrics MetricsConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	sessionCfg, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	metrics, err := loadMetricsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Session: sessionCfg, Metrics: metrics}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	StaticDir      string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	return ServerConfig{
		Addr:           addr,
		StaticDir:      strings.TrimSpace(os.Getenv("COLLAB_STATIC_DIR")),
		AllowedOrigins: parseListEnv("COLLAB_ALLOWED_ORIGINS"),
	}, nil
}

// OriginAllowed reports whether a browser origin may open a websocket.
// An empty allow list accepts every origin.
func (c ServerConfig) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// SessionConfig 描述单个 WebSocket 会话的传输参数。
type SessionConfig struct {
	SendBuffer      int
	MaxMessageBytes int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PingInterval    time.Duration
}

// DefaultSessionConfig returns the transport defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SendBuffer:      64,
		MaxMessageBytes: 1 << 20,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingInterval:    54 * time.Second,
	}
}

func loadSessionConfig() (SessionConfig, error) {
	cfg := DefaultSessionConfig()

	sendBuffer, err := parseOptionalIntEnv("COLLAB_SEND_BUFFER")
	if err != nil {
		return SessionConfig{}, err
	}
	if sendBuffer != nil {
		if *sendBuffer < 1 {
			cfg.SendBuffer = 1
		} else {
			cfg.SendBuffer = *sendBuffer
		}
	}

	maxBytes, err := parseOptionalIntEnv("COLLAB_MAX_MESSAGE_BYTES")
	if err != nil {
		return SessionConfig{}, err
	}
	if maxBytes != nil {
		if *maxBytes <= 0 {
			return SessionConfig{}, fmt.Errorf("invalid COLLAB_MAX_MESSAGE_BYTES value %d: must be positive", *maxBytes)
		}
		cfg.MaxMessageBytes = int64(*maxBytes)
	}

	if cfg.ReadTimeout, err = parseSecondsEnv("COLLAB_READ_TIMEOUT", cfg.ReadTimeout); err != nil {
		return SessionConfig{}, err
	}
	if cfg.WriteTimeout, err = parseSecondsEnv("COLLAB_WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return SessionConfig{}, err
	}
	if cfg.PingInterval, err = parseSecondsEnv("COLLAB_PING_INTERVAL", cfg.PingInterval); err != nil {
		return SessionConfig{}, err
	}

	if cfg.PingInterval >= cfg.ReadTimeout {
		return SessionConfig{}, fmt.Errorf("COLLAB_PING_INTERVAL (%s) must be shorter than COLLAB_READ_TIMEOUT (%s)", cfg.PingInterval, cfg.ReadTimeout)
	}

	return cfg, nil
}

// MetricsConfig 描述 Prometheus 指标暴露配置。
type MetricsConfig struct {
	Enabled bool
	Path    string
}

func loadMetricsConfig() (MetricsConfig, error) {
	enabled, err := parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return MetricsConfig{}, err
	}

	path := getEnvOrDefault("METRICS_PATH", "/metrics")
	if !strings.HasPrefix(path, "/") {
		return MetricsConfig{}, fmt.Errorf("invalid METRICS_PATH value %q: must start with /", path)
	}

	return MetricsConfig{Enabled: enabled, Path: path}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseSecondsEnv 读取以秒为单位的正整数时长。
func parseSecondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	seconds, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil {
		return defaultValue, nil
	}
	if *seconds <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, *seconds)
	}
	return time.Duration(*seconds) * time.Second, nil
}
