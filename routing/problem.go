package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
	"github.com/AntonStoeckl/endpoint-contracts-go/openapi"
)

// Problem implements RFC 7807 (Problem Details for HTTP APIs).
// All error responses of the router use this format.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// TraceID is the request id of the failed request.
	TraceID string `json:"trace_id,omitempty"`
	// Errors lists binding failures, if any.
	Errors []FieldError `json:"errors,omitempty"`
}

// Error implements the error interface.
func (p *Problem) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteProblem writes p as application/problem+json, enriched with the request.
func WriteProblem(w http.ResponseWriter, r *http.Request, p *Problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	if p.Instance == "" && r != nil {
		p.Instance = r.URL.Path
	}
	if p.TraceID == "" {
		p.TraceID = w.Header().Get(HeaderRequestID)
	}

	w.Header().Set("Content-Type", openapi.ContentTypeProblem)
	w.WriteHeader(p.Status)
	_ = jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w).Encode(p)
}

// problemFor maps an endpoint error to its response.
// Precondition violations are client errors carrying their configured status. Anything else
// is a server fault; the detail of a postcondition violation is only exposed when
// exposeViolations is set, and other errors are logged but never exposed.
func problemFor(err error, exposeViolations bool, logger *slog.Logger, r *http.Request) *Problem {
	var (
		pre     *contracts.PreconditionError
		post    *contracts.PostconditionError
		cfg     *contracts.ConfigError
		binding *BindingError
	)

	switch {
	case errors.As(err, &binding):
		return &Problem{
			Status: http.StatusUnprocessableEntity,
			Detail: "Request validation failed.",
			Errors: binding.Fields,
		}

	case errors.As(err, &pre):
		return &Problem{Status: pre.StatusCode, Detail: pre.Detail()}

	case errors.As(err, &post):
		logger.ErrorContext(r.Context(), "routing: post-condition violated",
			"method", r.Method, "path", r.URL.Path, "error", post.Error())
		p := &Problem{Status: http.StatusInternalServerError}
		if exposeViolations {
			p.Detail = post.Detail()
			if p.Detail == "" {
				p.Detail = "Post-condition violated: " + post.Text
			}
		}
		return p

	case errors.As(err, &cfg):
		logger.ErrorContext(r.Context(), "routing: contract configuration error",
			"method", r.Method, "path", r.URL.Path, "error", err.Error())
		return &Problem{Status: http.StatusInternalServerError}

	default:
		logger.ErrorContext(r.Context(), "routing: endpoint failed",
			"method", r.Method, "path", r.URL.Path, "error", err.Error())
		return &Problem{
			Status: http.StatusInternalServerError,
			Detail: "An unexpected error occurred. Please try again later.",
		}
	}
}
