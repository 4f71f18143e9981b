package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

type Status struct {
	Code     int32             `json:"code"`
	Reason   string            `json:"reason"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Error struct {
	Status
	Err   string `json:"error,omitempty"`
	clone bool
	error
}

func (e *Error) Error() string {
	if e.error != nil {
		e.Err = e.error.Error()
	}
	err, _ := json.Marshal(e)
	return string(err)
}

func New(code int, reason, msg string) *Error {
	return &Error{
		Status: Status{
			Code:    int32(code),
			Reason:  reason,
			Message: msg,
		},
	}
}

func (e *Error) Unwrap() error {
	return e.error
}

func (e *Error) Is(err error) bool {
	if se := new(Error); errors.As(err, &se) {
		return se.Code == e.Code && se.Reason == e.Reason
	}
	return false
}

func (e *Error) WithError(cause error) *Error {
	err := e.cloned()
	err.error = errors.WithStack(cause)
	return err
}

func (e *Error) WithMetadata(md map[string]string) *Error {
	err := e.cloned()
	err.Metadata = md
	return err
}

func (e *Error) WithMessage(msg string) *Error {
	err := e.cloned()
	err.Message = msg
	return err
}

func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

func HasStack(err error) bool {
	type tracer interface {
		StackTrace() errors.StackTrace
	}
	_, ok := err.(tracer)
	return ok
}

// write error code to grpc status

func (e *Error) GRPCStatus() *status.Status {
	eInfo := &errdetails.ErrorInfo{
		Reason:   e.Reason,
		Metadata: e.Metadata,
	}
	if e.error != nil {
		if eInfo.Metadata == nil {
			eInfo.Metadata = map[string]string{}
		}
		eInfo.Metadata[errStack] = fmt.Sprintf("%+v", e.error)
	}
	s, _ := status.New(HTTPToGRPCCode(int(e.Code)), e.Message).WithDetails(eInfo)
	return s
}

func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return int(FromError(err).Code)
}

func Reason(err error) string {
	if err == nil {
		return UnknownReason
	}
	return FromError(err).Reason
}

func (e *Error) cloned() *Error {
	if e.clone {
		return e
	}
	metadata := make(map[string]string, len(e.Metadata))
	for k, v := range e.Metadata {
		metadata[k] = v
	}
	return &Error{
		error: e.error,
		clone: true,
		Status: Status{
			Code:     e.Code,
			Reason:   e.Reason,
			Message:  e.Message,
			Metadata: metadata,
		},
	}
}

// convert error to Error

func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if se := new(Error); errors.As(err, &se) {
		return se
	}
	gs, ok := status.FromError(err)
	if !ok {
		return New(UnknownCode, UnknownReason, err.Error())
	}
	ret := New(GRPCToHTTPCode(gs.Code()), UnknownReason, gs.Message())
	for _, detail := range gs.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			ret.Reason = d.Reason
			ret = ret.WithMetadata(d.Metadata)
			ret.Err = ret.Metadata[errStack]
			delete(ret.Metadata, errStack)
			return ret
		}
	}
	return ret
}
