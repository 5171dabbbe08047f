package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Options selects the config file and flag overrides
type Options struct {
	File     string // explicit config file, empty to search default locations
	Server   string
	LogLevel string
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from file and environment, then applies flag overrides
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("mesa")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MESA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if opts.Server != "" {
		cfg.Server = opts.Server
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so environment variables bind on Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server", DefaultServer)
	v.SetDefault("graphqlPath", DefaultGraphQLPath)
	v.SetDefault("logLevel", DefaultLogLevel)
	v.SetDefault("requestTimeout", DefaultRequestTimeout)
	v.SetDefault("requestsPerSecond", 0)
	v.SetDefault("retryMaxAttempts", DefaultRetryMaxAttempts)
	v.SetDefault("keepAliveInterval", DefaultKeepAliveInterval)
	v.SetDefault("pongTimeout", DefaultPongTimeout)
	v.SetDefault("handshakeTimeout", DefaultHandshakeTimeout)
	v.SetDefault("reconnectBaseDelay", DefaultReconnectBaseDelay)
	v.SetDefault("reconnectMaxDelay", DefaultReconnectMaxDelay)
	v.SetDefault("reconnectAttempts", DefaultReconnectAttempts)
	v.SetDefault("eventQueueSize", DefaultEventQueueSize)
	v.SetDefault("cache.size", DefaultCacheSize)
	v.SetDefault("cache.gcTime", DefaultCacheGCTime)
	v.SetDefault("cache.persist", false)
	v.SetDefault("cache.directory", defaultCachePath())
	v.SetDefault("circuitBreaker.enabled", true)
	v.SetDefault("circuitBreaker.failureThreshold", DefaultFailureThreshold)
	v.SetDefault("circuitBreaker.recoveryTimeout", DefaultRecoveryTimeout)
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.GraphQLPath == "" {
		cfg.GraphQLPath = DefaultGraphQLPath
	}
	if !strings.HasPrefix(cfg.GraphQLPath, "/") {
		cfg.GraphQLPath = "/" + cfg.GraphQLPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryMaxAttempts == 0 {
		cfg.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.PongTimeout == 0 {
		cfg.PongTimeout = DefaultPongTimeout
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if cfg.ReconnectAttempts == 0 {
		cfg.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cfg.EventQueueSize == 0 {
		cfg.EventQueueSize = DefaultEventQueueSize
	}
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = DefaultCacheSize
	}
	if cfg.Cache.GCTime == 0 {
		cfg.Cache.GCTime = DefaultCacheGCTime
	}
	if cfg.Cache.Directory == "" {
		cfg.Cache.Directory = defaultCachePath()
	}
	if cfg.CircuitBreaker.FailureThreshold == 0 {
		cfg.CircuitBreaker.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.CircuitBreaker.RecoveryTimeout == 0 {
		cfg.CircuitBreaker.RecoveryTimeout = DefaultRecoveryTimeout
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Server)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server must be an http or https URL, got '%s'", cfg.Server)
	}
	if u.Host == "" {
		return fmt.Errorf("server must include a host")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must be non-negative")
	}

	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("requestsPerSecond must be non-negative")
	}

	if cfg.RetryMaxAttempts < 0 {
		return fmt.Errorf("retryMaxAttempts must be non-negative")
	}

	if cfg.KeepAliveInterval < 0 || cfg.PongTimeout < 0 || cfg.HandshakeTimeout < 0 {
		return fmt.Errorf("keepAliveInterval, pongTimeout and handshakeTimeout must be non-negative")
	}

	if cfg.ReconnectBaseDelay < 0 {
		return fmt.Errorf("reconnectBaseDelay must be non-negative")
	}

	if cfg.ReconnectMaxDelay < cfg.ReconnectBaseDelay {
		return fmt.Errorf("reconnectMaxDelay must not be less than reconnectBaseDelay")
	}

	if cfg.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnectAttempts must be non-negative")
	}

	if cfg.EventQueueSize < 0 {
		return fmt.Errorf("eventQueueSize must be non-negative")
	}

	if cfg.Cache.Size < 0 {
		return fmt.Errorf("cache.size must be non-negative")
	}

	if cfg.Cache.GCTime < 0 {
		return fmt.Errorf("cache.gcTime must be non-negative")
	}

	if cfg.CircuitBreaker.FailureThreshold < 0 || cfg.CircuitBreaker.RecoveryTimeout < 0 {
		return fmt.Errorf("circuitBreaker.failureThreshold and circuitBreaker.recoveryTimeout must be non-negative")
	}

	return nil
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "mesa")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "mesa")
	}
}

// defaultCachePath returns the default cache directory for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "mesa", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "mesa", "cache")
	}
}
