package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/roach88/knotter/internal/engine"
)

// Problem implements RFC 7807 (Problem Details for HTTP APIs).
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (p *Problem) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

func writeProblem(w http.ResponseWriter, r *http.Request, p *Problem) {
	p.Type = fmt.Sprintf("https://knotter.dev/errors/%d", p.Status)
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	p.Instance = r.URL.Path
	p.TraceID = w.Header().Get(requestIDHeader)

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, code engine.Code, detail string) {
	writeProblem(w, r, &Problem{Status: http.StatusBadRequest, Code: string(code), Detail: detail})
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	writeProblem(w, r, &Problem{
		Status: http.StatusTooManyRequests,
		Detail: "Rate limit exceeded. Retry after the specified interval.",
	})
}

// writeEngineError maps an engine error onto a problem document. Server-side
// failures are logged and replaced by a generic detail.
func writeEngineError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := engine.CodeOf(err)
	p := &Problem{Code: string(code)}

	switch code {
	case engine.CodeValidation, engine.CodeSerialization:
		p.Status = http.StatusBadRequest
		p.Detail = clientMessage(err)
		if reason, ok := engine.Reason(err); ok {
			p.Reason = string(reason)
		}
	case engine.CodeNotFound:
		p.Status = http.StatusNotFound
		p.Detail = clientMessage(err)
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", w.Header().Get(requestIDHeader),
			"error", err)
		p.Status = http.StatusInternalServerError
		p.Detail = "An unexpected error occurred. Please try again later."
	}
	writeProblem(w, r, p)
}

func clientMessage(err error) string {
	var e *engine.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
