package transport

import (
	"context"
	"errors"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	"github.com/jrife/tablets/catalog"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultRetryDelay is the delay suggested to callers
// that receive a retryable error
const DefaultRetryDelay = 100 * time.Millisecond

// Code returns the gRPC status code for a catalog error
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, catalog.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, catalog.ErrIllegalState):
		return codes.FailedPrecondition
	case errors.Is(err, catalog.ErrConflict):
		return codes.Aborted
	case errors.Is(err, catalog.ErrResourceExhausted):
		return codes.ResourceExhausted
	case errors.Is(err, catalog.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}

	return codes.Internal
}

func retryable(code codes.Code) bool {
	return code == codes.Aborted || code == codes.FailedPrecondition
}

// ToStatus converts a catalog error into a gRPC status error.
// resourceType and resourceName describe the resource the
// request was about and are attached as ResourceInfo.
func ToStatus(err error, resourceType string, resourceName string) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	code := Code(err)
	st := status.New(code, err.Error())
	details := []proto.Message{}

	if resourceName != "" {
		details = append(details, &errdetails.ResourceInfo{ResourceType: resourceType, ResourceName: resourceName})
	}

	if retryable(code) {
		details = append(details, &errdetails.RetryInfo{RetryDelay: ptypes.DurationProto(DefaultRetryDelay)})
	}

	if len(details) == 0 {
		return st.Err()
	}

	withDetails, detailsErr := st.WithDetails(details...)

	if detailsErr != nil {
		return st.Err()
	}

	return withDetails.Err()
}

// RemoteError is a catalog error received over the wire.
// errors.Is matches it against the catalog sentinel for
// its status code.
type RemoteError struct {
	code       codes.Code
	message    string
	retryDelay time.Duration
	resource   string
}

func (err *RemoteError) Error() string {
	return err.message
}

// Unwrap returns the catalog sentinel matching the status code
func (err *RemoteError) Unwrap() error {
	switch err.code {
	case codes.NotFound:
		return catalog.ErrNotFound
	case codes.FailedPrecondition:
		return catalog.ErrIllegalState
	case codes.Aborted:
		return catalog.ErrConflict
	case codes.ResourceExhausted:
		return catalog.ErrResourceExhausted
	case codes.InvalidArgument:
		return catalog.ErrInvalidArgument
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.Canceled:
		return context.Canceled
	}

	return nil
}

// Code returns the status code of the error
func (err *RemoteError) Code() codes.Code {
	return err.code
}

// Resource returns the name of the resource
// the failed request was about, if known
func (err *RemoteError) Resource() string {
	return err.resource
}

// FromStatus converts a gRPC status error back into an error
// that matches the catalog sentinels. Errors that are not
// status errors are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)

	if !ok {
		return err
	}

	remoteErr := &RemoteError{code: st.Code(), message: st.Message()}

	for _, detail := range st.Details() {
		switch detail := detail.(type) {
		case *errdetails.ResourceInfo:
			remoteErr.resource = detail.ResourceName
		case *errdetails.RetryInfo:
			if delay, err := ptypes.Duration(detail.RetryDelay); err == nil {
				remoteErr.retryDelay = delay
			}
		}
	}

	return remoteErr
}

// RetryDelay returns the delay the server suggested
// before retrying the failed request
func RetryDelay(err error) (time.Duration, bool) {
	var remoteErr *RemoteError

	if !errors.As(err, &remoteErr) || remoteErr.retryDelay == 0 {
		return 0, false
	}

	return remoteErr.retryDelay, true
}
