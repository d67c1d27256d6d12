package errmap

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aelexs/phone-verify-service/internal/domain"
)

// grpcMappings maps domain errors to gRPC status codes, kept alongside the
// HTTP mapper for a future gRPC-framed sibling (server.Params already plumbs
// an optional *grpc.Server). Order matters: first match wins (via errors.Is).
//
// Mapping follows gRPC status codes reference:
// https://grpc.github.io/grpc/core/md_doc_statuscodes.html
var grpcMappings = []struct {
	err  error
	code codes.Code
}{
	{domain.ErrNotFound, codes.NotFound},
	{domain.ErrAlreadyExists, codes.AlreadyExists},
	{domain.ErrSessionExpired, codes.NotFound},

	{domain.ErrSessionVerified, codes.FailedPrecondition},
	{domain.ErrNoCodeSent, codes.FailedPrecondition},
	{domain.ErrMaxCheckExceeded, codes.ResourceExhausted},

	{domain.ErrSenderRejected, codes.FailedPrecondition},
	{domain.ErrSenderIllegalArgument, codes.InvalidArgument},
	{domain.ErrSenderUnsupportedRoute, codes.Unavailable},
	{domain.ErrUnknownSender, codes.Unavailable},
	{domain.ErrSenderUnavailable, codes.Unavailable},

	{domain.ErrInvalidPhoneNumber, codes.InvalidArgument},
	{domain.ErrInvalidInput, codes.InvalidArgument},
	{domain.ErrEmptyID, codes.InvalidArgument},
	{domain.ErrInvalidID, codes.InvalidArgument},

	{domain.ErrRateLimited, codes.ResourceExhausted},
	{domain.ErrConflict, codes.Unavailable},
	{domain.ErrUnavailable, codes.Unavailable},
}

// ToGRPCStatus converts a domain error to a gRPC status.
func ToGRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	for _, m := range grpcMappings {
		if errors.Is(err, m.err) {
			return status.New(m.code, err.Error())
		}
	}
	// Never expose internal error details to clients
	return status.New(codes.Internal, "internal error")
}

// ToGRPCError converts a domain error to a gRPC error (implements error interface).
func ToGRPCError(err error) error {
	return ToGRPCStatus(err).Err()
}

// FromGRPCError extracts the gRPC status code from an error.
// Returns codes.Unknown if the error is not a gRPC status error.
func FromGRPCError(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Unknown
}
