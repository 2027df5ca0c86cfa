package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"blog-client/internal/domain"
	"blog-client/internal/observability"
	"blog-client/internal/service"
)

const maxUploadSize = 5 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps service errors onto the API's error bodies
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fields *service.FieldErrors
	switch {
	case errors.As(err, &fields):
		writeJSON(w, http.StatusBadRequest, fields)
	case errors.Is(err, domain.ErrPostNotFound), errors.Is(err, domain.ErrUserNotFound):
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrForbidden):
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
	case errors.Is(err, domain.ErrInvalidToken):
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
	default:
		observability.FromContext(r.Context()).Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return false
	}
	return true
}

func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeDetail(w, http.StatusBadRequest, "Multipart form parse error - "+err.Error())
		return false
	}
	return true
}

// formValue reports a multipart text field and whether it was sent at all
func formValue(r *http.Request, name string) (*string, bool) {
	if r.MultipartForm == nil {
		return nil, false
	}
	values, ok := r.MultipartForm.Value[name]
	if !ok || len(values) == 0 {
		return nil, false
	}
	v := values[0]
	return &v, true
}
