// Package realtime parses realtime command flags and composes the delivery
// process.
package realtime

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/pulse/internal/platform/cmd"
	server "github.com/louisbranch/pulse/internal/services/realtime/app"
)

// Config holds realtime command configuration. Environment names carry the
// PULSE_ prefix.
type Config struct {
	HTTPAddr            string `env:"REALTIME_HTTP_ADDR"    envDefault:":8090"`
	NotificationsDBPath string `env:"NOTIFICATIONS_DB_PATH" envDefault:"data/notifications.db"`
	ChatDBPath          string `env:"CHAT_DB_PATH"          envDefault:"data/chat.db"`
	JWTSecret           string `env:"AUTH_JWT_SECRET"`
	InternalToken       string `env:"INTERNAL_TOKEN"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "realtime HTTP listen address")
	fs.StringVar(&cfg.NotificationsDBPath, "notifications-db-path", cfg.NotificationsDBPath, "notifications SQLite path")
	fs.StringVar(&cfg.ChatDBPath, "chat-db-path", cfg.ChatDBPath, "chat SQLite path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := entrypoint.RequireSettings(map[string]string{
		"PULSE_REALTIME_HTTP_ADDR":    cfg.HTTPAddr,
		"PULSE_NOTIFICATIONS_DB_PATH": cfg.NotificationsDBPath,
		"PULSE_CHAT_DB_PATH":          cfg.ChatDBPath,
		"PULSE_AUTH_JWT_SECRET":       cfg.JWTSecret,
	}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the realtime app and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRealtime, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:            cfg.HTTPAddr,
			NotificationsDBPath: cfg.NotificationsDBPath,
			ChatDBPath:          cfg.ChatDBPath,
			JWTSecret:           cfg.JWTSecret,
			InternalToken:       cfg.InternalToken,
		}); err != nil {
			return fmt.Errorf("serve realtime: %w", err)
		}
		return nil
	})
}
