package adapter

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/tidwall/gjson"

	"unifiedai/pkg/aitypes"
)

const maxErrorBody = 500

// truncate shortens s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// statusError maps a non-success HTTP status onto the error taxonomy.
// 401 and 403 mean the remote rejected the key; anything else is a connection failure.
func statusError(params aitypes.ConnectionParams, status int, body []byte) error {
	message := errorMessage(body)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &aitypes.AuthenticationError{
			Provider:    params.Provider,
			ConfigIndex: params.ConfigIndex,
			Reason:      message,
			StatusCode:  status,
		}
	}
	return &aitypes.ConnectionError{
		Endpoint:   params.EndpointURL,
		StatusCode: status,
		Message:    message,
	}
}

// errorMessage extracts a human readable message from an error body: error.message,
// then a string error field, then message, then the raw body truncated.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message", "detail"} {
			if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String && r.String() != "" {
				return r.String()
			}
		}
	}
	if len(body) == 0 {
		return "empty response body"
	}
	return truncate(string(body), maxErrorBody)
}

// transportError wraps a failed round trip, flagging timeouts.
func transportError(params aitypes.ConnectionParams, err error) error {
	return &aitypes.ConnectionError{
		Endpoint: params.EndpointURL,
		Timeout:  isTimeout(err),
		Message:  err.Error(),
		Cause:    err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sdkError maps an error returned by a vendor SDK. status is the HTTP status the SDK
// reported, or 0 when the request never produced a response.
func sdkError(params aitypes.ConnectionParams, status int, message string, err error) error {
	if status == 0 {
		return transportError(params, err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &aitypes.AuthenticationError{
			Provider:    params.Provider,
			ConfigIndex: params.ConfigIndex,
			Reason:      message,
			StatusCode:  status,
			Cause:       err,
		}
	}
	return &aitypes.ConnectionError{
		Endpoint:   params.EndpointURL,
		StatusCode: status,
		Message:    message,
		Cause:      err,
	}
}

func conversionError(apiType aitypes.APIType, message string, raw []byte, cause error) error {
	return &aitypes.ResponseConversionError{
		APIType: apiType,
		Message: message,
		Raw:     truncate(string(raw), maxErrorBody),
		Cause:   cause,
	}
}
