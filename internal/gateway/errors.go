package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

var ErrNoCredentials = errors.New("payment gateway access token not configured")

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: gateway returned %d (%s): %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: gateway returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// Temporary reports whether retrying the same call later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Cause   []struct {
		Code        json.RawMessage `json:"code"`
		Description string          `json:"description"`
	} `json:"cause"`
}

func parseAPIError(op string, status int, body []byte) *APIError {
	apiErr := &APIError{Op: op, StatusCode: status}
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = parsed.Message
		apiErr.Code = parsed.Error
		if apiErr.Message == "" && len(parsed.Cause) > 0 {
			apiErr.Message = parsed.Cause[0].Description
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = truncate(string(body), 200)
	}
	return apiErr
}

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
