package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"talentflow/internal/app"
	"talentflow/internal/common"
	"talentflow/internal/http/middleware"
)

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return common.NewValidationError("invalid request", map[string]string{"body": "request body is required"})
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return common.NewValidationError("invalid request", map[string]string{"body": "request body too large"})
		case errors.Is(err, io.EOF):
			return common.NewValidationError("invalid request", map[string]string{"body": "request body is required"})
		default:
			return common.NewValidationError("invalid request", map[string]string{"body": "invalid json"})
		}
	}
	return nil
}

// idFromPath returns the path segment at index, counting from the first
// segment after the leading slash.
func idFromPath(r *http.Request, index int) (common.UUID, error) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if index < 0 || index >= len(parts) {
		return "", common.NewValidationError("invalid path", map[string]string{"id": "id is required"})
	}
	id, err := common.ParseUUID(parts[index])
	if err != nil {
		return "", common.NewValidationError("invalid path", map[string]string{"id": "invalid uuid"})
	}
	return id, nil
}

func parseUUIDField(field, value string) (common.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return "", common.NewValidationError("invalid request", map[string]string{field: field + " is required"})
	}
	id, err := common.ParseUUID(value)
	if err != nil {
		return "", common.NewValidationError("invalid request", map[string]string{field: "invalid uuid"})
	}
	return id, nil
}

func actorFrom(r *http.Request) (app.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return app.Actor{}, errUnauthorized()
	}
	return actor, nil
}

func errUnauthorized() error {
	return common.NewError(common.CodeUnauthorized, "unauthorized", nil)
}
