package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendLocal = "local"
	BackendLDAP  = "ldap"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LDAP     LDAPConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // Send HSTS header
	Environment string // "development", "production", "test"
	LogLevel    string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig holds the static defaults for the gate. LoginRequired and
// MaintenanceMode seed the runtime configuration kept in Redis.
type AuthConfig struct {
	LoginRequired         bool
	MaintenanceMode       bool
	RemoteBackend         string // "local" or "ldap"
	LastUsedInterval      time.Duration
	ExemptViewPermissions []string

	SuperuserName     string
	SuperuserEmail    string
	SuperuserPassword string
	SuperuserAPIToken string
}

type LDAPConfig struct {
	ServerURI       string
	BindDN          string
	BindPassword    string
	StartTLS        bool
	UserSearchBase  string
	UserSearchAttr  string
	GroupSearchBase string
	GroupClass      string
	FindGroupPerms  bool
	Timeout         time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DirectoryOverride reports whether tokens should re-resolve their owner
// through the directory service.
func (c *Config) DirectoryOverride() bool {
	return c.Auth.RemoteBackend == BackendLDAP && c.LDAP.FindGroupPerms
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			Secure:      getEnvBool("SERVER_SECURE", false),
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "tokengate"),
			Password: getEnv("DB_PASSWORD", "tokengate"),
			DBName:   getEnv("DB_NAME", "tokengate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			LoginRequired:         getEnvBool("LOGIN_REQUIRED", false),
			MaintenanceMode:       getEnvBool("MAINTENANCE_MODE", false),
			RemoteBackend:         strings.ToLower(getEnv("REMOTE_AUTH_BACKEND", BackendLocal)),
			LastUsedInterval:      getEnvDuration("TOKEN_LAST_USED_INTERVAL", 6*time.Second),
			ExemptViewPermissions: getEnvList("EXEMPT_VIEW_PERMISSIONS"),
			SuperuserName:         getEnv("SUPERUSER_NAME", ""),
			SuperuserEmail:        getEnv("SUPERUSER_EMAIL", ""),
			SuperuserPassword:     getEnv("SUPERUSER_PASSWORD", ""),
			SuperuserAPIToken:     getEnv("SUPERUSER_API_TOKEN", ""),
		},
		LDAP: LDAPConfig{
			ServerURI:       getEnv("AUTH_LDAP_SERVER_URI", ""),
			BindDN:          getEnv("AUTH_LDAP_BIND_DN", ""),
			BindPassword:    getEnv("AUTH_LDAP_BIND_PASSWORD", ""),
			StartTLS:        getEnvBool("AUTH_LDAP_START_TLS", false),
			UserSearchBase:  getEnv("AUTH_LDAP_USER_SEARCH_BASEDN", ""),
			UserSearchAttr:  getEnv("AUTH_LDAP_USER_SEARCH_ATTR", "uid"),
			GroupSearchBase: getEnv("AUTH_LDAP_GROUP_SEARCH_BASEDN", ""),
			GroupClass:      getEnv("AUTH_LDAP_GROUP_SEARCH_CLASS", "groupOfNames"),
			FindGroupPerms:  getEnvBool("AUTH_LDAP_FIND_GROUP_PERMS", false),
			Timeout:         getEnvDuration("AUTH_LDAP_TIMEOUT", 5*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.RemoteBackend {
	case BackendLocal:
	case BackendLDAP:
		if c.LDAP.ServerURI == "" {
			return fmt.Errorf("AUTH_LDAP_SERVER_URI is required when REMOTE_AUTH_BACKEND=%s", BackendLDAP)
		}
	default:
		return fmt.Errorf("unsupported REMOTE_AUTH_BACKEND %q", c.Auth.RemoteBackend)
	}
	if c.Auth.LastUsedInterval < 0 {
		return fmt.Errorf("TOKEN_LAST_USED_INTERVAL must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
