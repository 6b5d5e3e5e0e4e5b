package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
)

// wrapError classifies a Firestore error by its gRPC status. Context
// cancellations are passed through.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	return backend.WrapError(op, kindOf(status.Code(err)), err)
}

func kindOf(code codes.Code) backend.Kind {
	switch code {
	case codes.NotFound:
		return backend.KindNotFound
	case codes.PermissionDenied:
		return backend.KindForbidden
	case codes.Unauthenticated:
		return backend.KindSessionExpired
	case codes.InvalidArgument, codes.AlreadyExists, codes.FailedPrecondition, codes.OutOfRange:
		return backend.KindInvalidInput
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted:
		return backend.KindUnavailable
	}
	return backend.KindUnknown
}
