package middleware

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/141286/SWG-introduction-to-R/internal/errors"
	"github.com/141286/SWG-introduction-to-R/internal/validation"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 * 1024 * 1024

// RequestDecoder decodes JSON request bodies and validates them against
// their struct tags.
type RequestDecoder struct {
	validator   *validation.Validator
	logger      *slog.Logger
	maxBodySize int64
}

// NewRequestDecoder creates a decoder. maxBodySize <= 0 uses
// DefaultMaxBodyBytes.
func NewRequestDecoder(logger *slog.Logger, maxBodySize int64) *RequestDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodyBytes
	}
	return &RequestDecoder{
		validator:   validation.New(),
		logger:      logger.With(slog.String("component", "request_decoder")),
		maxBodySize: maxBodySize,
	}
}

// Decode reads r's body into dst and validates it. Unknown fields are
// rejected. Errors are ready for ErrorHandler.HandleError.
func (d *RequestDecoder) Decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return apierrors.New(http.StatusBadRequest, "INVALID_REQUEST", "Request body is required")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, d.maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		d.logger.DebugContext(r.Context(), "request body rejected",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		return decodeError(err, d.maxBodySize)
	}
	if dec.More() {
		return apierrors.New(http.StatusBadRequest, "INVALID_JSON", "Request body must contain a single JSON object")
	}

	return d.validator.Struct(dst)
}

func decodeError(err error, limit int64) error {
	var maxErr *http.MaxBytesError
	switch {
	case stderrors.As(err, &maxErr):
		return apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"Request body exceeds maximum allowed size", map[string]interface{}{"max_size": limit})
	case stderrors.Is(err, io.EOF):
		return apierrors.New(http.StatusBadRequest, "INVALID_REQUEST", "Request body is required")
	}
	return apierrors.InvalidRequestWithError(err)
}

// ContentTypeValidator rejects bodies whose Content-Type is not one of
// contentTypes.
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeProblem(w, r, http.StatusUnsupportedMediaType, apierrors.TypeValidation,
				"Content-Type must be one of: "+strings.Join(contentTypes, ", "))
		})
	}
}
