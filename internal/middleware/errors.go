package middleware

import (
	"net/http"

	"github.com/go-chi/render"

	apierrors "github.com/141286/SWG-introduction-to-R/internal/errors"
)

// writeProblem renders an RFC 7807 response for failures raised by the
// middleware chain itself, before any handler runs.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, detail string) {
	problem := apierrors.NewProblemDetails(status, problemType, http.StatusText(status), detail, r.URL.Path)
	if traceID := GetRequestID(r.Context()); traceID != "" {
		problem.WithExtension("trace_id", traceID)
	}
	_ = render.Render(w, r, problem)
}
