package main

import (
	"fmt"
	"os"

	"github.com/arrowgate/docdedupe/internal/logging"
	"github.com/arrowgate/docdedupe/internal/upstream"
)

// environment holds the handful of settings spec.md §6 names as the core's
// concern: a database path, upstream credentials, and a log level. CORS
// origin and an auto-migrate toggle are also named there, but both are
// HTTP-surface and migration-policy decisions with no concrete sink in
// this CLI (serve-stub exposes only /metrics and /healthz, and Store.Open always
// applies pending DDL), so neither is threaded through here.
type environment struct {
	databasePath string
	upstreamURL  string
	bearerToken  string
	username     string
	password     string
	logLevel     string
}

// loadEnvironment reads the DOCDEDUPE_* variables, falling back to the
// defaults a local demo run needs.
func loadEnvironment() (*environment, error) {
	e := &environment{
		databasePath: getenvDefault("DOCDEDUPE_DATABASE", "docdedupe.db"),
		upstreamURL:  os.Getenv("DOCDEDUPE_UPSTREAM_URL"),
		bearerToken:  os.Getenv("DOCDEDUPE_UPSTREAM_TOKEN"),
		username:     os.Getenv("DOCDEDUPE_UPSTREAM_USERNAME"),
		password:     os.Getenv("DOCDEDUPE_UPSTREAM_PASSWORD"),
		logLevel:     getenvDefault("DOCDEDUPE_LOG_LEVEL", "info"),
	}

	if e.upstreamURL == "" {
		return nil, fmt.Errorf("DOCDEDUPE_UPSTREAM_URL is required")
	}
	if e.bearerToken == "" && (e.username == "" || e.password == "") {
		return nil, fmt.Errorf("set DOCDEDUPE_UPSTREAM_TOKEN, or both DOCDEDUPE_UPSTREAM_USERNAME and DOCDEDUPE_UPSTREAM_PASSWORD")
	}

	return e, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// client builds the upstream.Client this environment describes.
func (e *environment) client() upstream.Client {
	var opts []upstream.Option
	if e.bearerToken != "" {
		opts = append(opts, upstream.WithBearerToken(e.bearerToken))
	} else {
		opts = append(opts, upstream.WithBasicAuth(e.username, e.password))
	}
	return upstream.NewHTTPClient(e.upstreamURL, opts...)
}

// initLogging configures the package-level logger from this environment.
func (e *environment) initLogging() {
	level := logging.Level(e.logLevel)
	logging.Init(logging.Config{Level: level})
}
