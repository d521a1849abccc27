package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/tokengate/internal/config"
)

// stubRedis swaps the client constructor and ping for the duration of a test
// and records the options the client was built with.
func stubRedis(t *testing.T, pingErr error) *redis.Options {
	t.Helper()
	origNew, origPing := newRedisClient, redisPing
	t.Cleanup(func() {
		newRedisClient = origNew
		redisPing = origPing
	})

	got := &redis.Options{}
	newRedisClient = func(opts *redis.Options) *redis.Client {
		*got = *opts
		return redis.NewClient(opts)
	}
	redisPing = func(ctx context.Context, client *redis.Client) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected ping to run with a deadline")
		}
		return pingErr
	}
	return got
}

func TestNewRedisDB_UsesRuntimeConfigSettings(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_PASSWORD", "s3cret")
	t.Setenv("REDIS_DB", "4")
	t.Setenv("REMOTE_AUTH_BACKEND", "local")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	got := stubRedis(t, nil)
	db, err := NewRedisDB(cfg.Redis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if got.Addr != "cache.internal:6380" || got.Password != "s3cret" || got.DB != 4 {
		t.Errorf("config did not reach client options: addr=%s password=%q db=%d", got.Addr, got.Password, got.DB)
	}
	if got.ReadTimeout <= 0 || got.ReadTimeout > got.DialTimeout {
		t.Errorf("expected short read timeout bounded by dial timeout, got read=%v dial=%v", got.ReadTimeout, got.DialTimeout)
	}
}

func TestNewRedisDB_PingFailureNamesDatabase(t *testing.T) {
	stubRedis(t, errors.New("NOAUTH Authentication required"))

	_, err := NewRedisDB(config.RedisConfig{Host: "localhost", Port: 6379, DB: 3})
	if err == nil {
		t.Fatal("expected ping error")
	}
	if !strings.Contains(err.Error(), "localhost:6379 (db 3)") || !strings.Contains(err.Error(), "NOAUTH") {
		t.Errorf("expected address, index and cause in error, got %q", err)
	}
}

func TestRedisDB_Health(t *testing.T) {
	tests := []struct {
		name    string
		client  *redis.Client
		pingErr error
		wantErr error
	}{
		{"healthy", redis.NewClient(&redis.Options{Addr: "localhost:0"}), nil, nil},
		{"ping fails", redis.NewClient(&redis.Options{Addr: "localhost:0"}), errors.New("connection refused"), nil},
		{"not connected", nil, nil, errRedisNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubRedis(t, tt.pingErr)
			db := &RedisDB{Client: tt.client}
			t.Cleanup(func() { _ = db.Close() })

			err := db.Health(context.Background())
			switch {
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			case tt.wantErr == nil && tt.pingErr != nil && err == nil:
				t.Error("expected ping error to surface")
			case tt.wantErr == nil && tt.pingErr == nil && err != nil:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
