package config

import (
	"net/url"
	"strings"
	"time"
)

// Config represents the main configuration structure
type Config struct {
	Server             string         `mapstructure:"server"`
	GraphQLPath        string         `mapstructure:"graphqlPath"`
	LogLevel           string         `mapstructure:"logLevel"`
	RequestTimeout     int            `mapstructure:"requestTimeout"`     // ms
	RequestsPerSecond  float64        `mapstructure:"requestsPerSecond"`  // 0 means unlimited
	RetryMaxAttempts   int            `mapstructure:"retryMaxAttempts"`
	KeepAliveInterval  int            `mapstructure:"keepAliveInterval"`  // ms - interval between protocol pings
	PongTimeout        int            `mapstructure:"pongTimeout"`        // ms - time to wait for a pong before terminating
	HandshakeTimeout   int            `mapstructure:"handshakeTimeout"`   // ms - dial plus connection_ack
	ReconnectBaseDelay int            `mapstructure:"reconnectBaseDelay"` // ms
	ReconnectMaxDelay  int            `mapstructure:"reconnectMaxDelay"`  // ms
	ReconnectAttempts  int            `mapstructure:"reconnectAttempts"`
	EventQueueSize     int            `mapstructure:"eventQueueSize"`
	ConnectionParams   map[string]any `mapstructure:"connectionParams"`
	Cache              CacheConfig    `mapstructure:"cache"`
	CircuitBreaker     BreakerConfig  `mapstructure:"circuitBreaker"`
}

// CacheConfig represents query cache configuration
type CacheConfig struct {
	Size      int    `mapstructure:"size"`   // number of entries
	GCTime    int    `mapstructure:"gcTime"` // ms - unused entries are evicted after this
	Persist   bool   `mapstructure:"persist"`
	Directory string `mapstructure:"directory"`
}

// BreakerConfig represents circuit breaker configuration for HTTP requests
type BreakerConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	FailureThreshold int  `mapstructure:"failureThreshold"`
	RecoveryTimeout  int  `mapstructure:"recoveryTimeout"` // ms
}

// Default values
const (
	DefaultServer             = "http://localhost:6868"
	DefaultGraphQLPath        = "/graphql"
	DefaultLogLevel           = "info"
	DefaultRequestTimeout     = 5000 // ms
	DefaultRetryMaxAttempts   = 3
	DefaultKeepAliveInterval  = 10000 // ms
	DefaultPongTimeout        = 3000  // ms
	DefaultHandshakeTimeout   = 10000 // ms
	DefaultReconnectBaseDelay = 2000  // ms
	DefaultReconnectMaxDelay  = 10000 // ms
	DefaultReconnectAttempts  = 5
	DefaultEventQueueSize     = 1024
	DefaultCacheSize          = 1000
	DefaultCacheGCTime        = 300000 // ms - 5 minutes
	DefaultFailureThreshold   = 5
	DefaultRecoveryTimeout    = 30000 // ms
)

// GetRequestTimeoutDuration returns request timeout as time.Duration
func (c *Config) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// GetKeepAliveIntervalDuration returns keep-alive interval as time.Duration
func (c *Config) GetKeepAliveIntervalDuration() time.Duration {
	return time.Duration(c.KeepAliveInterval) * time.Millisecond
}

// GetPongTimeoutDuration returns pong timeout as time.Duration
func (c *Config) GetPongTimeoutDuration() time.Duration {
	return time.Duration(c.PongTimeout) * time.Millisecond
}

// GetHandshakeTimeoutDuration returns handshake timeout as time.Duration
func (c *Config) GetHandshakeTimeoutDuration() time.Duration {
	return time.Duration(c.HandshakeTimeout) * time.Millisecond
}

// GetReconnectBaseDelayDuration returns the first reconnect delay as time.Duration
func (c *Config) GetReconnectBaseDelayDuration() time.Duration {
	return time.Duration(c.ReconnectBaseDelay) * time.Millisecond
}

// GetReconnectMaxDelayDuration returns the reconnect delay cap as time.Duration
func (c *Config) GetReconnectMaxDelayDuration() time.Duration {
	return time.Duration(c.ReconnectMaxDelay) * time.Millisecond
}

// GetCacheGCTimeDuration returns cache gc time as time.Duration
func (c *Config) GetCacheGCTimeDuration() time.Duration {
	return time.Duration(c.Cache.GCTime) * time.Millisecond
}

// GetRecoveryTimeoutDuration returns circuit breaker recovery timeout as time.Duration
func (c *Config) GetRecoveryTimeoutDuration() time.Duration {
	return time.Duration(c.CircuitBreaker.RecoveryTimeout) * time.Millisecond
}

// GraphQLURL returns the HTTP endpoint for queries and mutations
func (c *Config) GraphQLURL() string {
	return strings.TrimRight(c.Server, "/") + c.GraphQLPath
}

// WebSocketURL returns the subscription endpoint, same path with a ws scheme
func (c *Config) WebSocketURL() string {
	u, err := url.Parse(c.GraphQLURL())
	if err != nil {
		return c.GraphQLURL()
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

// CoverURL returns the album cover image address served next to the API
func (c *Config) CoverURL(albumID string) string {
	return strings.TrimRight(c.Server, "/") + "/covers/" + url.PathEscape(albumID) + "_300x300.webp"
}
