package main

import (
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = 30 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: defaultExternalHTTPTimeout,
}

// ConfigureExternalHTTPClient applies the configured timeout to the shared
// client used for grading platform calls and returns the applied value.
// Non-positive values fall back to the default.
func ConfigureExternalHTTPClient(seconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}
