package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"eventhub/internal/services"
	"eventhub/internal/status"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/core"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the error shape of every API response.
type ErrorBody struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// respondError maps err onto its HTTP status and the {status,message,code} body.
func respondError(e *core.RequestEvent, logger *slog.Logger, err error) error {
	var se *status.Error
	if !errors.As(err, &se) {
		se = status.Internal("internal error", err)
	}

	switch se.Kind {
	case status.KindInternal, status.KindExternalService:
		logger.Error("request failed", "method", e.Request.Method, "path", e.Request.URL.Path, "code", se.Code, "error", err)
	}

	body := ErrorBody{Status: "error", Message: se.Message, Code: se.Code}
	if se.Kind == status.KindInternal {
		body.Message = "internal error"
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		body.Errors = make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			body.Errors[field] = ferr.Error()
		}
	}

	return e.JSON(se.HTTPStatus(), body)
}

// decodeStrict reads a JSON body into dst, rejecting unknown fields and trailing data.
func decodeStrict(e *core.RequestEvent, dst any) error {
	body := http.MaxBytesReader(e.Response, e.Request.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return status.ValidationWrap("invalid request body", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return status.ValidationWrap("invalid request body", fmt.Errorf("unexpected data after JSON object"))
	}
	return nil
}

// actorFrom derives the caller from the PocketBase auth record. Superusers and users
// with the admin role act as admins.
func actorFrom(e *core.RequestEvent) services.Actor {
	if e.Auth == nil {
		return services.Actor{}
	}
	return services.Actor{
		UserID:  e.Auth.Id,
		IsAdmin: e.Auth.IsSuperuser() || e.Auth.GetString("role") == "admin",
	}
}

// RequireAdmin rejects callers that are neither superusers nor admin-role users.
func RequireAdmin(logger *slog.Logger) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		actor := actorFrom(e)
		if actor.UserID == "" {
			return respondError(e, logger, status.Unauthenticated("authentication required"))
		}
		if !actor.IsAdmin {
			return respondError(e, logger, status.Forbidden(status.CodeForbidden, "admin access required"))
		}
		return e.Next()
	}
}
