// Package config provides the server configuration, read from command-line
// flags, an optional JSON file and environment variables (in increasing
// order of precedence for the address, DSN and log level).
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// CleanerInterval is how often soft-deleted items are purged.
	CleanerInterval Duration `json:"cleaner_interval"`
	// Retention is how long soft-deleted items are kept.
	Retention Duration `json:"retention"`

	// TLS material.
	CACert     string `json:"ca_cert"`
	CAKey      string `json:"ca_key"`
	ServerCert string `json:"server_cert"`
	ServerKey  string `json:"server_key"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Duration is a time.Duration that reads "1h30m" style strings from JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = parsed
	case float64:
		d.Duration = time.Duration(val)
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Parse parses the process flags and environment. It exits on a malformed
// config file.
func Parse() *Options {
	opts, err := parse(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatal(err)
	}
	return opts
}

func parse(args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&opts.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&opts.LogLevel, "l", "info", "log level")
	fs.DurationVar(&opts.CleanerInterval.Duration, "cleaner-interval", time.Hour, "soft-delete cleaner interval")
	fs.DurationVar(&opts.Retention.Duration, "retention", 30*24*time.Hour, "soft-deleted item retention")
	fs.StringVar(&opts.CACert, "ca-cert", "certs/ca.crt", "CA certificate")
	fs.StringVar(&opts.CAKey, "ca-key", "certs/ca.key", "CA private key")
	fs.StringVar(&opts.ServerCert, "server-cert", "certs/server.crt", "server certificate")
	fs.StringVar(&opts.ServerKey, "server-key", "certs/server.key", "server private key")
	fs.StringVar(&opts.Config, "config", "config.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.json", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		data, err := os.ReadFile(opts.Config)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("error while reading config file: %w", err)
		default:
			if err := json.Unmarshal(data, opts); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if serverAddress := getenv("SERVER_ADDRESS"); serverAddress != "" {
		opts.Port = serverAddress
	}
	if dsn := getenv("DATABASE_DSN"); dsn != "" {
		opts.DatabaseDSN = dsn
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		opts.LogLevel = level
	}

	if opts.CleanerInterval.Duration <= 0 {
		return nil, fmt.Errorf("cleaner interval must be positive, got %s", opts.CleanerInterval)
	}
	if opts.Retention.Duration <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", opts.Retention)
	}

	return opts, nil
}
