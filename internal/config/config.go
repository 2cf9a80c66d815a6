package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

type Config struct {
	ListenAddr       string
	UpstreamURL      string
	UpstreamAPIKey   string
	UpstreamProxyURL string
	Grounded         bool
	OfflineNotice    string
	RequestTimeout   time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.ListenAddr, "listen-addr", getEnv("LISTEN_ADDR", ":8080"), "Site listen address")
	flag.StringVar(&cfg.UpstreamURL, "upstream-url", getEnv("UPSTREAM_URL", ""), "Completion API base URL or full endpoint URL")
	flag.StringVar(&cfg.UpstreamAPIKey, "upstream-api-key", getEnv("UPSTREAM_API_KEY", ""), "Bearer key for the completion API (optional)")
	flag.StringVar(&cfg.UpstreamProxyURL, "upstream-proxy-url", getEnv("UPSTREAM_PROXY_URL", ""), "HTTP/HTTPS proxy URL for upstream requests (e.g. http://proxy:8080)")
	flag.BoolVar(&cfg.Grounded, "grounded", getEnvBool("GROUNDED", true), "Ask the backend to answer strictly from the reference corpus")
	flag.StringVar(&cfg.OfflineNotice, "offline-notice", getEnv("OFFLINE_NOTICE", ""), "Advisory text shown when the backend is unreachable (empty uses the built-in notice)")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", getEnvDuration("REQUEST_TIMEOUT", 120*time.Second), "Upstream round-trip timeout for non-streaming requests")

	flag.Parse()

	if cfg.UpstreamURL == "" {
		return nil, fmt.Errorf("upstream-url is required (set UPSTREAM_URL or pass -upstream-url)")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
