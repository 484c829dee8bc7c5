package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/edu-cms/pkg/educms"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps service errors onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, educms.ErrPartialDeletion):
		return http.StatusInternalServerError, "partial_deletion"
	case errors.Is(err, educms.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, educms.ErrMissingField),
		errors.Is(err, educms.ErrInvalidField),
		errors.Is(err, educms.ErrInvalidReference),
		errors.Is(err, educms.ErrInvalidCategory),
		errors.Is(err, educms.ErrInvalidMediaPath):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, educms.ErrAlreadyJoined),
		errors.Is(err, educms.ErrNotJoined),
		errors.Is(err, educms.ErrUserExists),
		errors.Is(err, educms.ErrCategoryExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, educms.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError renders err and logs server-side failures.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, code := statusFor(err)
	body := ErrorBody{Code: code, Message: err.Error()}

	var verr *educms.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", r.URL.Path, "error", err)
		if code == "internal_error" {
			body.Message = "An internal server error occurred"
		}
	} else {
		h.logger.Debug(msg, "path", r.URL.Path, "status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: body})
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "invalid_request", Message: msg}})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "unauthorized", Message: "authentication required"}})
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "forbidden", Message: "admin role required"}})
}
