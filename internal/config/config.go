// Package config collects the service options from command-line flags,
// an optional JSON config file, a .env file and environment variables.
//
// Priority, highest first: environment, explicit flags, config file, defaults.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"server_address"`

	// ResultHostname is the public base URL of the service.
	ResultHostname string `json:"base_url"`

	// SiteURL is the public site that serves asset paths and /c/ collection
	// pages. Relative link targets are redirected there. Empty keeps them relative.
	SiteURL string `json:"site_url"`

	// FilePath is the JSON-lines file access events are appended to.
	// Empty means events go to the link registry.
	FilePath string `json:"file_storage_path"`

	// DatabaseDSN selects the registry: postgres:// for Postgres, sqlite:/file: for SQLite.
	DatabaseDSN string `json:"database_dsn"`

	EnablePprof bool `json:"enable_pprof"`
	EnableHTTPS bool `json:"enable_https"`

	// Config is the path of the JSON config file.
	Config string `json:"-"`

	// TrustedSubnet guards /metrics and the gRPC service. Empty denies every client.
	TrustedSubnet string `json:"trusted_subnet"`

	// GRPCAddress is the gRPC listen address. Empty disables the gRPC server.
	GRPCAddress string `json:"grpc_address"`

	JWTSecret      string `json:"jwt_secret"`
	LogLevel       string `json:"log_level"`
	LogDevelopment bool   `json:"log_development"`

	// GeoEndpoint is the base URL of the geolocation service. Empty disables enrichment.
	GeoEndpoint string `json:"geo_endpoint"`

	RecorderWorkers   int           `json:"recorder_workers"`
	RecorderQueueSize int           `json:"recorder_queue_size"`
	RecorderTimeout   time.Duration `json:"-"`
	FlushInterval     time.Duration `json:"-"`
	FlushBatchSize    int           `json:"flush_batch_size"`

	// VerifyRateLimit is the number of password attempts allowed per client and slug each minute.
	VerifyRateLimit int `json:"verify_rate_limit"`

	// DemoMode seeds the in-memory registry with the demo links when no database is configured.
	DemoMode bool `json:"demo_mode"`
}

// flagValues holds what the command line set.
var flagValues = &Options{}

func init() {
	bind(flag.CommandLine, flagValues)
}

func bind(fs *flag.FlagSet, o *Options) {
	fs.StringVar(&o.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&o.ResultHostname, "b", "http://localhost:8080", "public base url")
	fs.StringVar(&o.SiteURL, "site-url", "", "public site serving asset and collection pages")
	fs.StringVar(&o.FilePath, "f", "", "path to access event file")
	fs.StringVar(&o.DatabaseDSN, "d", "", "database dsn")
	fs.BoolVar(&o.EnablePprof, "p", false, "enable pprof")
	fs.BoolVar(&o.EnableHTTPS, "s", false, "enable https")
	fs.StringVar(&o.Config, "c", "config.json", "path to json config file")
	fs.StringVar(&o.TrustedSubnet, "t", "", "trusted subnet in CIDR notation")
	fs.StringVar(&o.GRPCAddress, "g", "", "grpc listen address")
	fs.StringVar(&o.JWTSecret, "jwt-secret", "supersecretkey", "secret used to verify owner tokens")
	fs.StringVar(&o.LogLevel, "log-level", "info", "log level")
	fs.BoolVar(&o.LogDevelopment, "log-dev", false, "human readable development logs")
	fs.StringVar(&o.GeoEndpoint, "geo-endpoint", "", "geolocation service base url")
	fs.IntVar(&o.RecorderWorkers, "recorder-workers", 4, "access recorder workers")
	fs.IntVar(&o.RecorderQueueSize, "recorder-queue", 1024, "access recorder queue size")
	fs.DurationVar(&o.RecorderTimeout, "recorder-timeout", 3*time.Second, "access recorder task timeout")
	fs.DurationVar(&o.FlushInterval, "flush-interval", 5*time.Second, "access event flush interval")
	fs.IntVar(&o.FlushBatchSize, "flush-batch", 25, "access event flush batch size")
	fs.IntVar(&o.VerifyRateLimit, "verify-limit", 10, "password attempts per minute per client and slug")
	fs.BoolVar(&o.DemoMode, "demo", true, "serve demo links when no database is configured")
}

// Parse builds a fresh Options value on every call.
func Parse() (*Options, error) {
	if !flag.Parsed() {
		flag.Parse()
	}

	// a missing .env file is fine
	_ = godotenv.Load()

	opts := &Options{}
	defaults := flag.NewFlagSet("defaults", flag.ContinueOnError)
	bind(defaults, opts)

	path := flagValues.Config
	if env := os.Getenv("CONFIG"); env != "" {
		path = env
	}
	if err := applyFile(path, opts); err != nil {
		return nil, err
	}

	var setErr error
	flag.Visit(func(f *flag.Flag) {
		if defaults.Lookup(f.Name) == nil {
			return
		}
		if err := defaults.Set(f.Name, f.Value.String()); err != nil && setErr == nil {
			setErr = err
		}
	})
	if setErr != nil {
		return nil, setErr
	}

	if err := applyEnv(opts); err != nil {
		return nil, err
	}

	opts.Config = path
	return opts, nil
}

func applyFile(path string, opts *Options) error {
	if path == "" {
		return nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(content, opts); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(opts *Options) error {
	strs := map[string]*string{
		"SERVER_ADDRESS":    &opts.Port,
		"BASE_URL":          &opts.ResultHostname,
		"SITE_URL":          &opts.SiteURL,
		"FILE_STORAGE_PATH": &opts.FilePath,
		"DATABASE_DSN":      &opts.DatabaseDSN,
		"TRUSTED_SUBNET":    &opts.TrustedSubnet,
		"GRPC_ADDRESS":      &opts.GRPCAddress,
		"JWT_SECRET":        &opts.JWTSecret,
		"LOG_LEVEL":         &opts.LogLevel,
		"GEO_ENDPOINT":      &opts.GeoEndpoint,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"ENABLE_PPROF":    &opts.EnablePprof,
		"ENABLE_HTTPS":    &opts.EnableHTTPS,
		"LOG_DEVELOPMENT": &opts.LogDevelopment,
		"DEMO_MODE":       &opts.DemoMode,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	ints := map[string]*int{
		"RECORDER_WORKERS":    &opts.RecorderWorkers,
		"RECORDER_QUEUE_SIZE": &opts.RecorderQueueSize,
		"FLUSH_BATCH_SIZE":    &opts.FlushBatchSize,
		"VERIFY_RATE_LIMIT":   &opts.VerifyRateLimit,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"RECORDER_TIMEOUT": &opts.RecorderTimeout,
		"FLUSH_INTERVAL":   &opts.FlushInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	return nil
}
