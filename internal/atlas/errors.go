package atlas

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrMetadataParse     = errors.New("atlas: metadata parse failed")
	ErrMetadataTransport = errors.New("atlas: metadata transport failed")
	ErrAtlasTransport    = errors.New("atlas: atlas transport failed")
	ErrInvalidSchedule   = errors.New("atlas: invalid schedule state")
	ErrMalformedDocument = errors.New("atlas: malformed document")
	ErrDecode            = errors.New("atlas: texture decode failed")
)

// Numeric error codes carried to panels. HTTP status codes pass through as-is;
// the negative range is reserved for failures with no HTTP status. 0 means no code.
const (
	CodeNone          = 0
	CodeUnknown       = -1
	CodeNetwork       = -2
	CodeDecode        = -3
	CodeCanceled      = -4
	CodeMetadataParse = -100
)

// FetchError is the (code, message) pair reported for a failed fetch.
type FetchError struct {
	Code    int
	Message string
}

func (e FetchError) Error() string {
	return fmt.Sprintf("fetch failed code=%d: %s", e.Code, e.Message)
}

// AsFetchError classifies err into a FetchError. Errors that already carry a
// FetchError keep its code.
func AsFetchError(err error) FetchError {
	if err == nil {
		return FetchError{}
	}
	var fe FetchError
	if errors.As(err, &fe) {
		if fe.Message == "" {
			fe.Message = err.Error()
		}
		return fe
	}
	var fep *FetchError
	if errors.As(err, &fep) && fep != nil {
		out := *fep
		if out.Message == "" {
			out.Message = err.Error()
		}
		return out
	}
	code := CodeUnknown
	switch {
	case errors.Is(err, context.Canceled):
		code = CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeNetwork
	case errors.Is(err, ErrMetadataParse), errors.Is(err, ErrMalformedDocument):
		code = CodeMetadataParse
	case errors.Is(err, ErrDecode):
		code = CodeDecode
	default:
		var nerr net.Error
		if errors.As(err, &nerr) {
			code = CodeNetwork
		}
	}
	return FetchError{Code: code, Message: err.Error()}
}
