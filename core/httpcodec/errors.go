package httpcodec

import "errors"

var (
	// ErrEndOfStream means the peer closed the connection before sending
	// any byte of a new request. It is not a failure.
	ErrEndOfStream = errors.New("end of stream")

	ErrMalformedRequest   = errors.New("malformed request")
	ErrUnsupportedVersion = errors.New("unsupported HTTP version")
	ErrHeaderTooLarge     = errors.New("request header too large")
	ErrBodyTooLarge       = errors.New("request body too large")
)
