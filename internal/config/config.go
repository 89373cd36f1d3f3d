package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout on plain HTTP routes (not the live socket)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Backend        string // "memory" | "redis" | "postgres"
	DatabaseURL    string // postgres connection string (backend=postgres)
	MigrateOnStart bool   // apply the embedded schema at startup

	// Redis (backend=redis)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Sessions
	SessionSecret string        // HS256 signing key
	SessionTTL    time.Duration // ex: 168h
	SecureCookie  bool          // set the Secure flag on the session cookie
	DevLogin      bool          // expose POST /api/auth/dev-login

	// Query cache and sync
	CacheStaleTime     time.Duration // how long a cached page stays fresh (ex: 5m)
	CacheFetchTimeout  time.Duration // bound on one store fetch
	CacheSweepInterval time.Duration // how often expired entries are dropped
	StrictOwnership    bool          // zero-row update/delete reports not found
	SearchDebounce     time.Duration // live session search delay (ex: 500ms)
	DefaultPageSize    int           // ex: 9
	FeedMinBackoff     time.Duration // first resubscribe delay
	FeedMaxBackoff     time.Duration // resubscribe delay cap

	// Mutation rate limiting (per client IP)
	RateLimitBurst  int
	RateLimitPerMin int

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints to specific IPs (e.g. "1.2.3.4, 5.6.7.8")
	CORSOrigins  []string // optional, origins allowed to call the API from a browser
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	src := newSource(os.Getenv("MARKS_CONFIG_FILE"))

	cfg := &Config{
		// Server settings
		ListenPort:      src.getenv("MARKS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: src.mustDuration("MARKS_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  src.mustDuration("MARKS_REQUEST_TIMEOUT", 15*time.Second),

		// Logging
		LogLevel:  src.getenv("MARKS_LOG_LEVEL", "info"),
		PrettyLog: src.mustBool("MARKS_PRETTY_LOG", true),

		// Storage
		Backend:        strings.ToLower(src.getenv("MARKS_BACKEND", BackendMemory)),
		MigrateOnStart: src.mustBool("MARKS_MIGRATE_ON_START", true),

		// Sessions
		SessionSecret: src.requireEnv("MARKS_SESSION_SECRET"),
		SessionTTL:    src.mustDuration("MARKS_SESSION_TTL", 7*24*time.Hour),
		SecureCookie:  src.mustBool("MARKS_SECURE_COOKIE", true),
		DevLogin:      src.mustBool("MARKS_DEV_LOGIN", false),

		// Cache and sync
		CacheStaleTime:     src.mustDuration("MARKS_CACHE_STALE_TIME", 5*time.Minute),
		CacheFetchTimeout:  src.mustDuration("MARKS_CACHE_FETCH_TIMEOUT", 10*time.Second),
		CacheSweepInterval: src.mustDuration("MARKS_CACHE_SWEEP_INTERVAL", 10*time.Minute),
		StrictOwnership:    src.mustBool("MARKS_STRICT_OWNERSHIP", true),
		SearchDebounce:     src.mustDuration("MARKS_SEARCH_DEBOUNCE", 500*time.Millisecond),
		DefaultPageSize:    src.getenvInt("MARKS_PAGE_SIZE", 9),
		FeedMinBackoff:     src.mustDuration("MARKS_FEED_MIN_BACKOFF", 500*time.Millisecond),
		FeedMaxBackoff:     src.mustDuration("MARKS_FEED_MAX_BACKOFF", 30*time.Second),

		RateLimitBurst:  src.getenvInt("MARKS_RATE_LIMIT_BURST", 30),
		RateLimitPerMin: src.getenvInt("MARKS_RATE_LIMIT_PER_MIN", 60),

		// Access restrictions
		AllowedHosts: splitAndTrim(src.getenv("MARKS_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(src.getenv("MARKS_ALLOWED_CIDRS", "")),
		CORSOrigins:  splitAndTrim(src.getenv("MARKS_CORS_ORIGINS", "")),
		TrustProxy:   src.mustBool("MARKS_TRUST_PROXY", true),
	}

	switch cfg.Backend {
	case BackendMemory:
	case BackendPostgres:
		cfg.DatabaseURL = src.requireEnv("MARKS_DATABASE_URL")
	case BackendRedis:
		cfg.RedisAddr = src.requireEnv("MARKS_REDIS_ADDR")
		cfg.RedisUser = src.getenv("MARKS_REDIS_USERNAME", "default")
		cfg.RedisPasswordRequired = src.mustBool("MARKS_REDIS_PASSWORD_REQUIRED", true)
		cfg.RedisPassword = src.getenv("MARKS_REDIS_PASSWORD", "")
		cfg.RedisDB = src.requireEnvInt("MARKS_REDIS_DB")
		cfg.RedisDT = src.mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
		cfg.RedisRT = src.mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
		cfg.RedisWT = src.mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
		cfg.RedisMaxWait = src.mustDuration("REDIS_MAX_WAIT", 10*time.Second)
		cfg.RedisPingTimeout = src.mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
		cfg.RedisPoolSize = src.getenvInt("REDIS_POOL_SIZE", 10)
		cfg.RedisConnectTimeout = src.mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
		cfg.RedisRetryInterval = src.mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
		cfg.RedisWarnThreshold = src.getenvInt("REDIS_WARN_THRESHOLD", 3)

		// Validate Redis password configuration
		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: MARKS_REDIS_PASSWORD is required when MARKS_REDIS_PASSWORD_REQUIRED=true")
		}
	default:
		panic(fmt.Sprintf("❌ FATAL: Unknown MARKS_BACKEND %q (want memory, redis or postgres)", cfg.Backend))
	}

	if len(cfg.SessionSecret) < 32 {
		panic("❌ FATAL: MARKS_SESSION_SECRET must be at least 32 characters")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.SessionSecret = "***REDACTED***"
		if cfg.DatabaseURL != "" {
			cfgCopy.DatabaseURL = "***REDACTED***"
		}
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// source resolves keys from the environment first, then from the optional
// YAML file.
type source struct {
	file map[string]string
}

// newSource reads a flat YAML mapping of the same keys as the environment.
// An empty path yields an environment-only source.
func newSource(path string) source {
	if path == "" {
		return source{}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Cannot read config file %s: %v", path, err))
	}
	file, err := parseFile(raw)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid config file %s: %v", path, err))
	}
	return source{file: file}
}

func parseFile(raw []byte) (map[string]string, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc))
	for k, node := range doc {
		switch node.Kind {
		case yaml.ScalarNode:
			out[k] = node.Value
		case yaml.SequenceNode:
			// lists are accepted wherever a comma separated value is
			items := make([]string, 0, len(node.Content))
			for _, item := range node.Content {
				items = append(items, item.Value)
			}
			out[k] = strings.Join(items, ",")
		default:
			return nil, fmt.Errorf("key %s: expected a scalar or a list", k)
		}
	}
	return out, nil
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

// helpers
func (s source) getenv(key, def string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return def
}

func (s source) requireEnv(key string) string {
	v := s.lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func (s source) requireEnvInt(key string) int {
	v := s.lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func (s source) getenvInt(key string, def int) int {
	if v := s.lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (s source) mustBool(key string, def bool) bool {
	if v := s.lookup(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func (s source) mustDuration(key string, def time.Duration) time.Duration {
	if v := s.lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
