package catalog

import (
	"context"
	"errors"

	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/internal/session"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidRequest marks a request document with missing or mistyped
// fields.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps catalog errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, session.ErrInvalidArgument),
		ephem.HasCode(err, ephem.CodeInvalidValue),
		ephem.HasCode(err, ephem.CodeUnknownFrame):
		return codes.InvalidArgument

	case errors.Is(err, ephem.ErrNotFound),
		errors.Is(err, ephem.ErrUnknownIdentifier),
		ephem.HasCode(err, ephem.CodeNoSuchFile),
		ephem.HasCode(err, ephem.CodeFileNotLoaded):
		return codes.NotFound

	case errors.Is(err, ephem.ErrNoDataAtEpoch),
		errors.Is(err, ephem.ErrNoFrameAvailable),
		errors.Is(err, ephem.ErrParameterUnavailable):
		return codes.FailedPrecondition

	case errors.Is(err, ephem.ErrDataIntegrity),
		ephem.HasCode(err, ephem.CodeBadKernel):
		return codes.DataLoss

	case errors.Is(err, ephem.ErrIndexOutOfRange):
		return codes.OutOfRange

	default:
		return codes.Internal
	}
}
