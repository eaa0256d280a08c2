// Package hub implements the router service: the quote endpoint and the
// relay endpoints that carry protocol messages between participant
// systems without ever holding funds itself.
package hub

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config wires one hub instance.
type Config struct {
	// SharedSecret is the value every caller must present in the shared
	// protocol header.
	SharedSecret string
	// ResponseHeaderValue is stamped on every response in the same
	// header, identifying the hub to its callers.
	ResponseHeaderValue string
	// Directory maps participant host names to their base URLs. Relay
	// targets not present here are rejected.
	Directory map[string]string
	// Quotes configures the quoting engine.
	Quotes QuoteConfig
	// HTTPClient is used for relayed calls. Defaults to a client with
	// Timeout applied.
	HTTPClient *http.Client
	// Timeout bounds each relayed call. Defaults to 30 seconds.
	Timeout time.Duration

	Logger zerolog.Logger
}

// Service is one router instance.
type Service struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// New builds a Service from cfg.
func New(cfg Config) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Service{cfg: cfg, http: client, log: cfg.Logger}
}

// lookupHost resolves a participant host name to its base URL.
func (s *Service) lookupHost(host string) (string, bool) {
	url, ok := s.cfg.Directory[host]
	return url, ok
}
