package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
)

// errorPayload covers the auth API ({error_code, msg}), its legacy OAuth form
// ({error, error_description}) and the table API ({code, message}).
type errorPayload struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (p errorPayload) code() string {
	if p.ErrorCode != "" {
		return p.ErrorCode
	}
	var s string
	if len(p.Code) > 0 && json.Unmarshal(p.Code, &s) == nil && s != "" {
		return s
	}
	return p.Error
}

func (p errorPayload) message() string {
	for _, m := range []string{p.Msg, p.Message, p.ErrorDescription, p.Error} {
		if strings.TrimSpace(m) != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func errorFromResponse(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload errorPayload
	if len(bytes.TrimSpace(body)) > 0 {
		_ = json.Unmarshal(body, &payload)
	}
	code := payload.code()
	msg := payload.message()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if code == "" {
		code = strconv.Itoa(resp.StatusCode)
	}
	return &backend.Error{
		Op:      op,
		Kind:    classify(op, resp.StatusCode, code, msg),
		Code:    code,
		Message: msg,
	}
}

// classify maps a wire failure to a backend kind: backend codes first, then HTTP status.
func classify(op string, status int, code, msg string) backend.Kind {
	switch code {
	case "invalid_credentials":
		return backend.KindInvalidCredentials
	case "invalid_grant":
		if op == opRefreshSession {
			return backend.KindSessionExpired
		}
		if strings.EqualFold(msg, "Email not confirmed") {
			return backend.KindEmailNotConfirmed
		}
		return backend.KindInvalidCredentials
	case "email_not_confirmed":
		return backend.KindEmailNotConfirmed
	case "user_already_exists", "email_exists":
		return backend.KindUserExists
	case "session_not_found", "no_authorization":
		return backend.KindSessionMissing
	case "session_expired", "bad_jwt", "refresh_token_not_found", "refresh_token_already_used", "PGRST301", "PGRST303":
		return backend.KindSessionExpired
	case "PGRST116":
		return backend.KindNotFound
	case "42501":
		return backend.KindForbidden
	case "23502", "23503", "23505", "22P02", "PGRST102", "validation_failed", "weak_password":
		return backend.KindInvalidInput
	case "over_request_rate_limit", "over_email_send_rate_limit":
		return backend.KindUnavailable
	}

	switch {
	case status == http.StatusUnauthorized:
		return backend.KindSessionExpired
	case status == http.StatusForbidden:
		return backend.KindForbidden
	case status == http.StatusNotFound:
		return backend.KindNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return backend.KindInvalidInput
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return backend.KindUnavailable
	}
	return backend.KindUnknown
}
