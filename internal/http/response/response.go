package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"talentflow/internal/common"
	"talentflow/internal/observability"
)

// ErrorCollector counts error responses by code.
type ErrorCollector interface {
	IncErrorCode(code common.Code)
}

var (
	collector ErrorCollector
	logger    *slog.Logger
)

func SetErrorCollector(c ErrorCollector) {
	collector = c
}

// SetLogger overrides the logger used for server-side failures. A nil logger
// restores slog.Default.
func SetLogger(l *slog.Logger) {
	logger = l
}

// detailedError is implemented by domain errors that carry their own code and
// a client-facing message, such as pipeline transition errors.
type detailedError interface {
	error
	Code() common.Code
	Message() string
	Details() map[string]string
}

type ErrorBody struct {
	Code    common.Code       `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, body := Describe(err)
	if collector != nil {
		collector.IncErrorCode(body.Code)
	}
	if status >= http.StatusInternalServerError {
		LogFailure(r, body.Code, err)
	}
	JSON(w, status, map[string]ErrorBody{"error": body})
}

// LogFailure records a server-side failure with its cause. Clients only ever
// see the masked body.
func LogFailure(r *http.Request, code common.Code, err error) {
	l := logger
	if l == nil {
		l = slog.Default()
	}
	attrs := []any{slog.String("code", string(code)), slog.String("error", common.Detail(err))}
	if r != nil {
		attrs = append(attrs,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", observability.RequestIDFromContext(r.Context())))
	}
	l.Error("request failed", attrs...)
}

// Describe converts err into the status and body written by Error.
func Describe(err error) (int, ErrorBody) {
	body := ErrorBody{Code: common.CodeInternal, Message: "internal error"}
	var detailed detailedError
	var appErr *common.Error
	switch {
	case errors.As(err, &detailed):
		body.Code = detailed.Code()
		body.Message = detailed.Message()
		body.Details = detailed.Details()
	case errors.As(err, &appErr):
		body.Code = appErr.Code
		body.Fields = appErr.Fields
		if appErr.Code != common.CodeInternal {
			body.Message = appErr.Message
		}
	}
	return StatusFor(body.Code), body
}

func StatusFor(code common.Code) int {
	switch code {
	case common.CodeValidation:
		return http.StatusBadRequest
	case common.CodeInvalidState:
		return http.StatusUnprocessableEntity
	case common.CodeNotFound:
		return http.StatusNotFound
	case common.CodeConflict:
		return http.StatusConflict
	case common.CodeForbidden:
		return http.StatusForbidden
	case common.CodeUnauthorized:
		return http.StatusUnauthorized
	case common.CodeRateLimited:
		return http.StatusTooManyRequests
	case common.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
