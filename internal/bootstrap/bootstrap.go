// Package bootstrap performs the startup shared by every binary: environment
// and config loading, the service logger, the database with dev migrations
// and optionally redis.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/instance"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/migrate"
	"github.com/farmconnect/farmconnect-backend/pkg/redis"
)

type Options struct {
	// Service names the binary in logs and in cfg.Service.Kind.
	Service string
	Redis   bool
}

// Runtime holds what a binary needs after startup. Redis is nil unless
// Options.Redis was set.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client
}

// Start brings up the shared infrastructure. Anything opened before a
// failure is closed again.
func Start(ctx context.Context, opts Options) (*Runtime, error) {
	if opts.Service == "" {
		return nil, errors.New("bootstrap: service name required")
	}
	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: opts.Service}).
			Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = opts.Service

	rt := &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: opts.Service,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			Format:      cfg.App.LogFormat,
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}

	if rt.DB, err = db.New(ctx, cfg.DB, rt.Logger); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, rt.Logger, rt.DB); err != nil {
		rt.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	if opts.Redis {
		if rt.Redis, err = redis.New(ctx, cfg.Redis, rt.Logger); err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	return rt, nil
}

// Context tags ctx with the fields every log line of a binary carries.
func (rt *Runtime) Context(ctx context.Context, extra map[string]any) context.Context {
	fields := map[string]any{
		"env":          rt.Config.App.Env,
		"service_kind": rt.Config.Service.Kind,
		"instance":     instance.GetID(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	return rt.Logger.WithFields(ctx, fields)
}

// Close releases redis before the database. Errors are logged.
func (rt *Runtime) Close() {
	ctx := context.Background()
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.Logger.Error(ctx, "error closing redis", err)
		}
		rt.Redis = nil
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			rt.Logger.Error(ctx, "error closing database", err)
		}
		rt.DB = nil
	}
}

// Fatal logs err, releases the runtime and exits. os.Exit skips deferred
// calls, so binaries use this instead of returning through main.
func (rt *Runtime) Fatal(ctx context.Context, msg string, err error) {
	rt.Logger.Error(ctx, msg, err)
	rt.Close()
	os.Exit(1)
}

// Exit reports a Start failure, before any Runtime exists.
func Exit(service string, err error) {
	logger.New(logger.Options{ServiceName: service}).Error(context.Background(), "startup failed", err)
	os.Exit(1)
}
