// Package relay parses relay command flags and composes the transport entrypoint.
package relay

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/idlewild-games/guild-relay/internal/platform/cmd"
	server "github.com/idlewild-games/guild-relay/internal/services/relay/app"
)

// Config holds relay command configuration.
type Config struct {
	HTTPAddr     string        `env:"GUILD_RELAY_HTTP_ADDR"     envDefault:":9000"`
	TLSCertFile  string        `env:"GUILD_RELAY_TLS_CERT_FILE"`
	TLSKeyFile   string        `env:"GUILD_RELAY_TLS_KEY_FILE"`
	PingInterval time.Duration `env:"GUILD_RELAY_PING_INTERVAL" envDefault:"60s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "relay HTTP listen address")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert-file", cfg.TLSCertFile, "TLS certificate file (enables wss)")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key-file", cfg.TLSKeyFile, "TLS private key file (enables wss)")
	fs.DurationVar(&cfg.PingInterval, "ping-interval", cfg.PingInterval, "heartbeat ping interval")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the relay app and starts realtime transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRelay, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:     cfg.HTTPAddr,
			TLSCertFile:  cfg.TLSCertFile,
			TLSKeyFile:   cfg.TLSKeyFile,
			PingInterval: cfg.PingInterval,
		}); err != nil {
			return fmt.Errorf("serve relay: %w", err)
		}
		return nil
	})
}
