package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

const (
	UnknownReason = "UNKNOWN_REASON"
	UnknownCode   = 600

	Panic     = "PANIC"
	PanicCode = 603

	InvalidManifest     = "INVALID_MANIFEST"
	InvalidManifestCode = http.StatusBadRequest

	DuplicateID     = "DUPLICATE_ID"
	DuplicateIDCode = http.StatusConflict

	PluginNotFound     = "PLUGIN_NOT_FOUND"
	PluginNotFoundCode = http.StatusNotFound

	NoCompatibleProvider     = "NO_COMPATIBLE_PROVIDER"
	NoCompatibleProviderCode = http.StatusServiceUnavailable

	VersionDowngrade     = "VERSION_DOWNGRADE_REJECTED"
	VersionDowngradeCode = http.StatusConflict

	LockTimeout     = "REGISTRY_LOCK_TIMEOUT"
	LockTimeoutCode = http.StatusGatewayTimeout

	ResolutionFail     = "RESOLUTION_FAIL"
	ResolutionFailCode = http.StatusFailedDependency

	errStack = "err_stack"

	ClientClosed = 499
)

func HTTPToGRPCCode(code int) codes.Code {
	switch code {
	case http.StatusOK:
		return codes.OK
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.Aborted
	case http.StatusFailedDependency:
		return codes.FailedPrecondition
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusInternalServerError:
		return codes.Internal
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	case ClientClosed:
		return codes.Canceled
	}
	return codes.Unknown
}

func GRPCToHTTPCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return ClientClosed
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.FailedPrecondition:
		return http.StatusFailedDependency
	case codes.Aborted:
		return http.StatusConflict
	case codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Internal:
		return http.StatusInternalServerError
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DataLoss:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
