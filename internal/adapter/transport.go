package adapter

import (
	"net"
	"net/http"
	"time"

	"unifiedai/internal/logger"
	"unifiedai/pkg/aitypes"
)

// newHTTPClient builds a client whose dial and TLS handshake are bounded by the connect
// timeout and whose wait for response headers is bounded by the read timeout.
func newHTTPClient(timeouts aitypes.Timeouts, settings Settings) *http.Client {
	base := settings.Transport
	if base == nil {
		dialer := &net.Dialer{
			Timeout:   timeouts.Connect,
			KeepAlive: 30 * time.Second,
		}
		base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   timeouts.Connect,
			ResponseHeaderTimeout: timeouts.Read,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	}

	if settings.Debug {
		base = &debugTransport{base: base}
	}

	return &http.Client{
		Transport: base,
		Timeout:   timeouts.Connect + timeouts.Read,
	}
}

// closeIdle releases pooled connections held by client.
func closeIdle(client *http.Client) {
	if client != nil {
		client.CloseIdleConnections()
	}
}

// debugTransport logs each HTTP exchange at debug level. The Authorization
// header is never logged.
type debugTransport struct {
	base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger.Debug("HTTP request",
		"method", req.Method,
		"url", req.URL.String(),
		"headers", redactHeaders(req.Header))

	resp, err := dt.base.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		logger.Debug("HTTP request failed", "url", req.URL.String(), "duration", duration, "error", err)
		return resp, err
	}

	logger.Debug("HTTP response",
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", duration)
	return resp, nil
}

// CloseIdleConnections forwards to the wrapped transport so http.Client can release it.
func (dt *debugTransport) CloseIdleConnections() {
	type idleCloser interface{ CloseIdleConnections() }
	if c, ok := dt.base.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}

var sensitiveHeaders = map[string]bool{
	"Authorization":  true,
	"X-Api-Key":      true,
	"X-Goog-Api-Key": true,
	"Api-Key":        true,
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		if sensitiveHeaders[http.CanonicalHeaderKey(k)] {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v[0]
	}
	return out
}
