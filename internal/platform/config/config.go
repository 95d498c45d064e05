// Package config builds the process configuration once at startup: defaults, then an
// optional YAML file named by CONFIG_FILE, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	id "rolegate/pkg/domain"
	pstrings "rolegate/pkg/platform/strings"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Environment names.
const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

// Config is the full process configuration.
type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	RBAC      RBACConfig      `yaml:"rbac"`
	Params    ParamsConfig    `yaml:"params"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	APIPrefix       string        `yaml:"api_prefix"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	SigningKey     string        `yaml:"signing_key"`
	Algorithm      string        `yaml:"algorithm"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	VerifyAudience bool          `yaml:"verify_audience"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	BcryptCost     int           `yaml:"bcrypt_cost"`
}

// RBACConfig enables role checks and names the roles this deployment accepts.
type RBACConfig struct {
	Enabled bool     `yaml:"enabled"`
	Roles   []string `yaml:"roles"`
}

type ParamsConfig struct {
	DefaultTake int `yaml:"default_take"`
	MaxTake     int `yaml:"max_take"`
}

// PostgresConfig selects the PostgreSQL store. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`
	ApplySchema     bool          `yaml:"apply_schema"`
	RoleSwitching   bool          `yaml:"role_switching"`
}

// RedisConfig is empty-URL-disabled.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Identity cache backends.
const (
	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

type CacheConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Size    int           `yaml:"size"`
}

// KafkaConfig enables the audit topic when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	AuditTopic string   `yaml:"audit_topic"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// BootstrapConfig seeds the first superuser at startup when both fields are set.
type BootstrapConfig struct {
	SuperuserEmail    string `yaml:"superuser_email"`
	SuperuserPassword string `yaml:"superuser_password"`
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		Env: EnvDev,
		Server: ServerConfig{
			Addr:            ":8080",
			APIPrefix:       "/api/v1",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Auth: AuthConfig{
			SigningKey:     devSigningKey,
			Algorithm:      "HS256",
			Issuer:         "rolegate",
			AccessTokenTTL: 8 * 24 * time.Hour,
			BcryptCost:     12,
		},
		RBAC:   RBACConfig{Enabled: false, Roles: id.AllRoles().Strings()},
		Params: ParamsConfig{DefaultTake: 50, MaxTake: 1000},
		Postgres: PostgresConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			TxTimeout:       5 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Cache:   CacheConfig{Backend: CacheLRU, TTL: 30 * time.Second, Size: 1024},
		Kafka:   KafkaConfig{AuditTopic: "rolegate.audit"},
		Tracing: TracingConfig{ServiceName: "rolegate"},
	}
}

// Load reads CONFIG_FILE and the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an injectable environment lookup.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	var envErrs []error
	if err := cfg.applyEnv(envReader{lookup: lookup, errs: &envErrs}); err != nil {
		return Config{}, err
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
		if cfg.Env == EnvProd {
			cfg.Log.Format = "json"
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(env envReader) error {
	env.str("APP_ENV", &c.Env)

	env.str("SERVER_ADDR", &c.Server.Addr)
	env.str("API_PREFIX", &c.Server.APIPrefix)
	env.duration("SERVER_REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	env.duration("SERVER_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	env.str("LOG_LEVEL", &c.Log.Level)
	env.str("LOG_FORMAT", &c.Log.Format)

	env.str("JWT_SECRET_KEY", &c.Auth.SigningKey)
	env.str("JWT_ALGORITHM", &c.Auth.Algorithm)
	env.str("JWT_ISSUER", &c.Auth.Issuer)
	env.str("JWT_AUDIENCE", &c.Auth.Audience)
	env.boolean("JWT_VERIFY_AUDIENCE", &c.Auth.VerifyAudience)
	var expireMinutes int
	if env.integer("ACCESS_TOKEN_EXPIRE_MINUTES", &expireMinutes) {
		c.Auth.AccessTokenTTL = time.Duration(expireMinutes) * time.Minute
	}
	env.integer("BCRYPT_COST", &c.Auth.BcryptCost)

	env.boolean("RBAC_ENABLED", &c.RBAC.Enabled)
	env.list("RBAC_ROLES", &c.RBAC.Roles)

	env.integer("PARAMS_DEFAULT_TAKE", &c.Params.DefaultTake)
	env.integer("PARAMS_MAX_TAKE", &c.Params.MaxTake)

	env.str("DATABASE_URL", &c.Postgres.DSN)
	env.integer("POSTGRES_MAX_OPEN_CONNS", &c.Postgres.MaxOpenConns)
	env.integer("POSTGRES_MAX_IDLE_CONNS", &c.Postgres.MaxIdleConns)
	env.duration("POSTGRES_CONN_MAX_LIFETIME", &c.Postgres.ConnMaxLifetime)
	env.duration("POSTGRES_TX_TIMEOUT", &c.Postgres.TxTimeout)
	env.boolean("POSTGRES_APPLY_SCHEMA", &c.Postgres.ApplySchema)
	env.boolean("DB_ROLE_SWITCHING", &c.Postgres.RoleSwitching)

	env.str("REDIS_URL", &c.Redis.URL)
	env.integer("REDIS_POOL_SIZE", &c.Redis.PoolSize)
	env.integer("REDIS_MIN_IDLE_CONNS", &c.Redis.MinIdleConns)
	env.duration("REDIS_DIAL_TIMEOUT", &c.Redis.DialTimeout)
	env.duration("REDIS_READ_TIMEOUT", &c.Redis.ReadTimeout)
	env.duration("REDIS_WRITE_TIMEOUT", &c.Redis.WriteTimeout)

	env.str("IDENTITY_CACHE", &c.Cache.Backend)
	env.duration("IDENTITY_CACHE_TTL", &c.Cache.TTL)
	env.integer("IDENTITY_CACHE_SIZE", &c.Cache.Size)

	env.list("KAFKA_BROKERS", &c.Kafka.Brokers)
	env.str("AUDIT_TOPIC", &c.Kafka.AuditTopic)

	env.str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	env.str("OTEL_SERVICE_NAME", &c.Tracing.ServiceName)

	env.str("FIRST_SUPERUSER_EMAIL", &c.Bootstrap.SuperuserEmail)
	env.str("FIRST_SUPERUSER_PASSWORD", &c.Bootstrap.SuperuserPassword)

	return env.err()
}

// Validate checks cross-field rules.
func (c Config) Validate() error {
	var errs []error
	switch c.Env {
	case EnvDev, EnvTest, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be dev, test or prod, got %q", c.Env))
	}
	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	if c.Env == EnvProd && c.Auth.SigningKey == devSigningKey {
		errs = append(errs, errors.New("JWT_SECRET_KEY must be set in production"))
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM must be HS256, HS384 or HS512, got %q", c.Auth.Algorithm))
	}
	if c.Auth.VerifyAudience && c.Auth.Audience == "" {
		errs = append(errs, errors.New("JWT_AUDIENCE is required when JWT_VERIFY_AUDIENCE is set"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("access token TTL must be positive"))
	}
	if _, err := c.RoleSet(); err != nil {
		errs = append(errs, fmt.Errorf("RBAC_ROLES: %w", err))
	}
	if c.Params.DefaultTake <= 0 || c.Params.MaxTake <= 0 {
		errs = append(errs, errors.New("page sizes must be positive"))
	} else if c.Params.DefaultTake > c.Params.MaxTake {
		errs = append(errs, errors.New("PARAMS_DEFAULT_TAKE must not exceed PARAMS_MAX_TAKE"))
	}
	switch c.Cache.Backend {
	case CacheNone, CacheLRU:
	case CacheRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("IDENTITY_CACHE=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("IDENTITY_CACHE must be none, lru or redis, got %q", c.Cache.Backend))
	}
	if c.Postgres.RoleSwitching && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("DB_ROLE_SWITCHING requires DATABASE_URL"))
	}
	if (c.Bootstrap.SuperuserEmail == "") != (c.Bootstrap.SuperuserPassword == "") {
		errs = append(errs, errors.New("FIRST_SUPERUSER_EMAIL and FIRST_SUPERUSER_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

// RoleSet parses the deployment's enabled roles.
func (c Config) RoleSet() (id.RoleSet, error) {
	if len(c.RBAC.Roles) == 0 {
		return id.AllRoles(), nil
	}
	return id.ParseRoleSet(c.RBAC.Roles)
}

// IsDevelopment reports whether diagnostics such as query timing and process time
// headers should be enabled.
func (c Config) IsDevelopment() bool {
	return c.Env == EnvDev || c.Env == EnvTest
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   *[]error
}

func (e envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e envReader) fail(err error) {
	*e.errs = append(*e.errs, err)
}

func (e envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e envReader) list(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		*dst = pstrings.SplitList(v)
	}
}

func (e envReader) integer(key string, dst *int) bool {
	v, ok := e.get(key)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return false
	}
	*dst = n
	return true
}

func (e envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = b
}

func (e envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = d
}

func (e envReader) err() error {
	return errors.Join(*e.errs...)
}
