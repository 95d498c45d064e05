package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.Env)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
	assert.False(t, cfg.RBAC.Enabled)
	assert.Equal(t, 50, cfg.Params.DefaultTake)
	assert.Equal(t, 1000, cfg.Params.MaxTake)
	assert.Equal(t, CacheLRU, cfg.Cache.Backend)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "text", cfg.Log.Format)

	roles, err := cfg.RoleSet()
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "employee", "admin", "superuser"}, roles.Strings())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	cfg, err := LoadFrom(envFrom(map[string]string{
		"APP_ENV":                     "prod",
		"JWT_SECRET_KEY":              "s3cret",
		"JWT_ALGORITHM":               "HS512",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "15",
		"RBAC_ENABLED":                "true",
		"RBAC_ROLES":                  "admin, admin ,user",
		"PARAMS_DEFAULT_TAKE":         "20",
		"PARAMS_MAX_TAKE":             "200",
		"DATABASE_URL":                "postgres://localhost/rolegate",
		"DB_ROLE_SWITCHING":           "1",
		"KAFKA_BROKERS":               "a:9092,b:9092",
		"SERVER_REQUEST_TIMEOUT":      "2s",
	}))
	require.NoError(t, err)

	assert.Equal(t, EnvProd, cfg.Env)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "HS512", cfg.Auth.Algorithm)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.True(t, cfg.RBAC.Enabled)
	assert.Equal(t, []string{"admin", "user"}, cfg.RBAC.Roles)
	assert.Equal(t, 20, cfg.Params.DefaultTake)
	assert.True(t, cfg.Postgres.RoleSwitching)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
}

func TestLoadFromFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rolegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  shutdown_timeout: 3s
params:
  default_take: 10
  max_take: 100
cache:
  backend: none
`), 0o600))

	cfg, err := LoadFrom(envFrom(map[string]string{
		"CONFIG_FILE":     path,
		"PARAMS_MAX_TAKE": "500",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 10, cfg.Params.DefaultTake)
	assert.Equal(t, 500, cfg.Params.MaxTake)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix, "unset keys keep defaults")
}

func TestLoadFromErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"PARAMS_MAX_TAKE": "many"}, "invalid PARAMS_MAX_TAKE"},
		{"bad bool", map[string]string{"RBAC_ENABLED": "perhaps"}, "invalid RBAC_ENABLED"},
		{"bad duration", map[string]string{"IDENTITY_CACHE_TTL": "soon"}, "invalid IDENTITY_CACHE_TTL"},
		{"bad env", map[string]string{"APP_ENV": "staging"}, "APP_ENV"},
		{"prod default key", map[string]string{"APP_ENV": "prod"}, "must be set in production"},
		{"bad algorithm", map[string]string{"JWT_ALGORITHM": "RS256"}, "JWT_ALGORITHM"},
		{"audience required", map[string]string{"JWT_VERIFY_AUDIENCE": "true"}, "JWT_AUDIENCE"},
		{"unknown role", map[string]string{"RBAC_ROLES": "root"}, "RBAC_ROLES"},
		{"default above max", map[string]string{"PARAMS_DEFAULT_TAKE": "100", "PARAMS_MAX_TAKE": "10"}, "must not exceed"},
		{"redis cache without url", map[string]string{"IDENTITY_CACHE": "redis"}, "requires REDIS_URL"},
		{"unknown cache", map[string]string{"IDENTITY_CACHE": "memcached"}, "IDENTITY_CACHE"},
		{"role switching without db", map[string]string{"DB_ROLE_SWITCHING": "true"}, "requires DATABASE_URL"},
		{"half bootstrap", map[string]string{"FIRST_SUPERUSER_EMAIL": "root@example.com"}, "set together"},
		{"missing file", map[string]string{"CONFIG_FILE": "/nonexistent/rolegate.yaml"}, "read config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(envFrom(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEmptyEnvValuesAreIgnored(t *testing.T) {
	cfg, err := LoadFrom(envFrom(map[string]string{"SERVER_ADDR": "  "}))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}
