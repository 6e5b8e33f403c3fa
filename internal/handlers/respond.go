package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ukydev/fleetflow/internal/middleware"
	"github.com/ukydev/fleetflow/internal/models"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps an error kind onto the HTTP status reported for it.
func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrCapacityExceeded):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrResourceUnavailable):
		return http.StatusConflict
	case errors.Is(err, models.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError reports err to the client. Business rule rejections carry
// their message; storage and unexpected failures are logged and answered
// with a generic one.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	log := middleware.Log(r.Context()).WithError(err)
	resp := ErrorResponse{Error: models.Kind(err), Message: err.Error()}

	switch status {
	case http.StatusServiceUnavailable:
		log.Warn("storage unavailable")
		w.Header().Set("Retry-After", strconv.Itoa(1))
		resp = ErrorResponse{Error: "transient", Message: "service temporarily unavailable, retry later"}
	case http.StatusInternalServerError:
		log.Error("request failed")
		resp = ErrorResponse{Error: "internal", Message: "internal server error"}
	case http.StatusUnauthorized:
		if errors.Is(err, models.ErrInvalidCredentials) {
			resp.Message = "invalid email or password"
		}
		log.Debug("request rejected")
	default:
		log.Debug("request rejected")
	}
	writeJSON(w, status, resp)
}

// readJSON decodes the request body into dst.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return models.Invalidf("failed to read request body")
	}
	if len(body) == 0 {
		return models.Invalidf("request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return models.Invalidf("invalid JSON: %v", err)
	}
	return nil
}

// caller returns the authenticated caller; the router only reaches handlers
// that need one through Authenticate.
func caller(r *http.Request) (models.Caller, error) {
	c, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return models.Caller{}, models.ErrUnauthorized
	}
	return c, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, models.Invalidf("%s must be a number", name)
	}
	return f, nil
}
