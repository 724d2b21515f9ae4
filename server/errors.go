package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/poiesic/paperfeed"
	"github.com/poiesic/paperfeed/search"
)

var errBadRequest = errors.New("invalid request body")

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrQueryTooLong):
		return http.StatusBadRequest
	case errors.Is(err, paperfeed.ErrPaperNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	id := requestID(r.Context())

	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		s.logger.Error("request failed", "requestId", id, "path", r.URL.Path, "err", err)
		message = "failed to fetch papers"
	case http.StatusNotFound:
		message = "paper not found"
	case http.StatusBadRequest:
		if errors.Is(err, errBadRequest) {
			message = errBadRequest.Error()
		}
	}
	writeJSON(w, status, errorBody{Error: message, RequestID: id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
