package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"github.com/nailerHeum/AjouNICE/internal/repository"
)

// Error codes reported in extensions.code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeStoreError      = "STORE_ERROR"
	CodeUploadTooLarge  = "UPLOAD_TOO_LARGE"
	CodeUploadFailed    = "UPLOAD_FAILED"
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeDepthExceeded   = "DEPTH_LIMIT_EXCEEDED"
	CodeInternal        = "INTERNAL_ERROR"
)

// mapError converts a resolver error into a client-facing GraphQL error.
// Store and internal failures are logged and reported without detail.
func mapError(logger *slog.Logger, err error, operation string, path ast.Path) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		if gqlErr.Path == nil {
			gqlErr.Path = path
		}
		return gqlErr
	}

	code, message := classify(err)
	switch code {
	case CodeStoreError, CodeInternal, CodeUploadFailed:
		logger.Error("operation failed", "operation", operation, "code", code, "error", err)
	default:
		logger.Debug("operation rejected", "operation", operation, "code", code, "error", err)
	}

	return &gqlerror.Error{
		Message: message,
		Path:    path,
		Extensions: map[string]interface{}{
			"code":      code,
			"operation": operation,
		},
	}
}

func classify(err error) (code, message string) {
	var (
		authErr     *apperrors.AuthenticationError
		uploadErr   *apperrors.StorageUploadError
		upstreamErr *apperrors.UpstreamServiceError
		argErr      *argumentError
	)

	switch {
	case errors.As(err, &authErr):
		return CodeUnauthenticated, authErr.Error()
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return CodeUnauthenticated, "authentication required"
	case errors.As(err, &argErr):
		return CodeInvalidInput, argErr.Error()
	case errors.Is(err, apperrors.ErrInvalidInput),
		errors.Is(err, repository.ErrUnknownField),
		errors.Is(err, repository.ErrMissingFilter):
		return CodeInvalidInput, "invalid input"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, apperrors.ErrTimeout):
		return CodeTimeout, "operation timed out"
	case errors.As(err, &uploadErr):
		if uploadErr.TooLarge() {
			return CodeUploadTooLarge, uploadErr.Error()
		}
		return CodeUploadFailed, "upload failed, try again"
	case errors.As(err, &upstreamErr):
		return CodeUpstreamError, upstreamErr.Error()
	case apperrors.IsStore(err):
		return CodeStoreError, "store operation failed"
	}
	return CodeInternal, "internal server error"
}

// ErrorPresenter handles errors raised by gqlgen itself, such as parse and
// validation failures, and anything a transport reports.
func ErrorPresenter(logger *slog.Logger) graphql.ErrorPresenterFunc {
	return func(ctx context.Context, err error) *gqlerror.Error {
		var gqlErr *gqlerror.Error
		if errors.As(err, &gqlErr) {
			return graphql.DefaultErrorPresenter(ctx, err)
		}
		return mapError(logger, err, "", graphql.GetPath(ctx))
	}
}

// RecoverFunc turns a panic into an internal error.
func RecoverFunc(logger *slog.Logger) graphql.RecoverFunc {
	return func(ctx context.Context, p interface{}) error {
		logger.Error("panic while serving graphql", "panic", p)
		return &gqlerror.Error{
			Message:    "internal server error",
			Extensions: map[string]interface{}{"code": CodeInternal},
		}
	}
}
