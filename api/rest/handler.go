package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxBodyBytes = 1 << 20

	// RequestIDHeader carries the id assigned to every request.
	RequestIDHeader = "X-Request-Id"
)

// PathBinder is implemented by requests that read parameters from the url path.
type PathBinder interface {
	BindPath(pathValue func(name string) string) error
}

// HandlerFunc is a typed handler: it receives a decoded request and returns either a response or an error. Errors
// that are not an *Err are reported as internal errors.
type HandlerFunc[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)

// RegisterFunc registers fn on mux for the given method and path pattern.
func RegisterFunc[Req, Resp any](logger *logrus.Logger, mux *http.ServeMux, method, pattern string, fn HandlerFunc[Req, Resp]) {
	mux.HandleFunc(method+" "+pattern, func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		logger := logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     method,
			"path":       r.URL.Path,
		})

		req := new(Req)
		if r.Method != http.MethodGet {
			err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(req)
			if err != nil && !errors.Is(err, io.EOF) {
				logger.WithError(err).Warn("Failed to decode request body")
				writeJSON(logger, w, http.StatusBadRequest, NewErrf(http.StatusBadRequest, "Invalid request body").WithCode(CodeInvalidInput))
				return
			}
		}
		if binder, ok := any(req).(PathBinder); ok {
			err := binder.BindPath(r.PathValue)
			if err != nil {
				logger.WithError(err).Warn("Failed to bind path parameters")
				writeJSON(logger, w, http.StatusBadRequest, NewErrf(http.StatusBadRequest, "%s", err.Error()).WithCode(CodeInvalidInput))
				return
			}
		}

		resp, err := fn(r.Context(), req)
		if err != nil {
			var apiErr *Err
			if !errors.As(err, &apiErr) {
				logger.WithError(err).Error("Handler failed with an unexpected error")
				apiErr = NewErrf(http.StatusInternalServerError, "Internal error").WithCode(CodeInternal)
			}
			writeJSON(logger, w, apiErr.StatusCode, apiErr)
			return
		}

		writeJSON(logger, w, http.StatusOK, resp)
	})
}

func writeJSON(logger *logrus.Entry, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		logger.WithError(err).Error("Failed to write response")
	}
}
