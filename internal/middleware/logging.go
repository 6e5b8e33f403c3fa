package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// RequestLogger tags each request with an id, echoed in X-Request-ID, and
// logs one line per request once it is served.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		// Authenticate runs further in, so it fills the caller into this holder.
		info := &requestInfo{}
		ctx := context.WithValue(r.Context(), RequestIDContextKey, id)
		ctx = context.WithValue(ctx, requestInfoKey{}, info)

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		entry := logrus.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"bytes":      rec.bytes,
			"duration":   time.Since(start).String(),
			"remote":     getClientIP(r),
		})
		if info.organizationID != "" {
			entry = entry.WithField("organization_id", info.organizationID)
		}
		switch {
		case rec.status >= 500:
			entry.Error("request failed")
		case rec.status >= 400:
			entry.Info("request rejected")
		default:
			entry.Info("request served")
		}
	})
}

type requestInfoKey struct{}

type requestInfo struct {
	organizationID string
}

func noteOrganization(ctx context.Context, orgID string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.organizationID = orgID
	}
}

// RequestID returns the id RequestLogger assigned to the request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// Log returns a logger carrying the request id and caller, if known.
func Log(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(logrus.StandardLogger())
	if id := RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	if claims, ok := GetUserFromContext(ctx); ok {
		entry = entry.WithFields(logrus.Fields{"user_id": claims.UserID, "organization_id": claims.OrganizationID})
	}
	return entry
}
