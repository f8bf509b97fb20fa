package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/lumen/internal/types"
)

// Auth errors are mapped in the auth package interceptor.
// Unknown models and events map to NOT_FOUND, duplicates to ALREADY_EXISTS,
// malformed requests to INVALID_ARGUMENT, timeouts to DEADLINE_EXCEEDED.

// statusError converts an engine error into a gRPC status.
func statusError(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, types.ErrDataModelNotFound), errors.Is(err, types.ErrEventNotFound):
		code = codes.NotFound
	case errors.Is(err, types.ErrDataModelExists):
		code = codes.AlreadyExists
	case errors.Is(err, types.ErrInvalidEntity), errors.Is(err, types.ErrCoercionFailed):
		code = codes.InvalidArgument
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func invalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
