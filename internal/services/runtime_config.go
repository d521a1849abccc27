package services

import (
	"context"
	"strconv"

	"github.com/HammerMeetNail/tokengate/internal/auth"
	"github.com/HammerMeetNail/tokengate/internal/logging"
)

const (
	RuntimeConfigKey = "tokengate:config"

	fieldMaintenanceMode = "maintenance_mode"
	fieldLoginRequired   = "login_required"
)

// RuntimeConfigService serves the runtime-mutable settings from a Redis hash.
// Operators flip MAINTENANCE_MODE or LOGIN_REQUIRED with HSET; the next request
// picks it up. Missing or unreadable values fall back to the env defaults.
type RuntimeConfigService struct {
	redis    RedisClient
	defaults auth.Settings
	logger   *logging.Logger
}

func NewRuntimeConfigService(redis RedisClient, defaults auth.Settings, logger *logging.Logger) *RuntimeConfigService {
	if logger == nil {
		logger = logging.Default
	}
	return &RuntimeConfigService{
		redis:    redis,
		defaults: defaults,
		logger:   logger.Named("config"),
	}
}

// Seed writes the defaults for fields that are not set yet.
func (s *RuntimeConfigService) Seed(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	if _, err := s.redis.HSetNX(ctx, RuntimeConfigKey, fieldMaintenanceMode, strconv.FormatBool(s.defaults.MaintenanceMode)); err != nil {
		return err
	}
	if _, err := s.redis.HSetNX(ctx, RuntimeConfigKey, fieldLoginRequired, strconv.FormatBool(s.defaults.LoginRequired)); err != nil {
		return err
	}
	return nil
}

func (s *RuntimeConfigService) Snapshot(ctx context.Context) auth.Settings {
	settings := s.defaults
	if s.redis == nil {
		return settings
	}

	values, err := s.redis.HGetAll(ctx, RuntimeConfigKey)
	if err != nil {
		s.logger.Warn("Reading runtime config failed; using defaults", map[string]interface{}{
			"error": err.Error(),
		})
		return settings
	}

	settings.MaintenanceMode = s.parseBool(values, fieldMaintenanceMode, settings.MaintenanceMode)
	settings.LoginRequired = s.parseBool(values, fieldLoginRequired, settings.LoginRequired)
	return settings
}

func (s *RuntimeConfigService) parseBool(values map[string]string, field string, fallback bool) bool {
	raw, ok := values[field]
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn("Invalid runtime config value", map[string]interface{}{
			"field": field,
			"value": raw,
		})
		return fallback
	}
	return v
}
