package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks a message rejected before persistence
	// (oversized or missing field). Never broadcast.
	ErrValidation = fmt.Errorf("message validation failed")
	// ErrStorage marks an append or read that could not complete.
	ErrStorage = fmt.Errorf("message store unavailable")
	// ErrDelivery marks a per-session transport fault during fan-out.
	// It is isolated to that session and never fails the send.
	ErrDelivery = fmt.Errorf("session delivery fault")
	// ErrMissingAPIKey is returned by the GIF search proxy when no
	// server-side credential is configured.
	ErrMissingAPIKey = fmt.Errorf("missing GIPHY_API_KEY")
	ErrWorkerPanic   = fmt.Errorf("worker panic")
)

// UpstreamError carries the status and body of a failed image search
// call so the proxy can surface them verbatim to the requesting client.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("giphy error: %d %s", e.Status, e.Body)
}

// MapToHTTPStatus translates domain errors into HTTP status codes
// for the REST surface (GIF search, health).
func MapToHTTPStatus(err error) int {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrMissingAPIKey):
		return http.StatusBadRequest
	case stderrors.As(err, &upstream):
		return http.StatusBadGateway
	case stderrors.Is(err, ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
