package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrHeaderTooShort       = errors.New("coap: header too short")
	ErrUnsupportedVersion   = errors.New("coap: unsupported version")
	ErrTokenTooShort        = errors.New("coap: token too short")
	ErrOptionHeaderTooShort = errors.New("coap: option too short for header")
	ErrOptionDeltaInvalid   = errors.New("coap: option delta invalid")
	ErrOptionLenInvalid     = errors.New("coap: option length invalid")
	ErrOptionTooBig         = errors.New("coap: option value overruns packet")
	ErrOptionOverrunsPacket = errors.New("coap: options start past end of packet")
	ErrOptionOutOfRange     = errors.New("coap: option delta or length out of range")
	ErrOptionOrder          = errors.New("coap: option numbers not ascending")
	ErrTooManyOptions       = errors.New("coap: too many options")
	ErrBufferTooSmall       = errors.New("coap: buffer too small")
	ErrUnsupportedToken     = errors.New("coap: unsupported token")

	ErrNotFound         = errors.New("coap: resource not found")
	ErrMethodNotAllowed = errors.New("coap: method not allowed")
	ErrResponseCode     = errors.New("coap: error response code")
)

// ResponseError reports a response whose code is in the 4.xx or 5.xx range.
type ResponseError struct {
	Code Code
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("coap: error response %s", e.Code)
}

// Is matches ErrNotFound for 4.04, ErrMethodNotAllowed for 4.05 and
// ErrResponseCode for every other error code.
func (e *ResponseError) Is(target error) bool {
	switch target {
	case ErrResponseCode:
		return e.Code != NotFound && e.Code != MethodNotAllowed
	case ErrNotFound:
		return e.Code == NotFound
	case ErrMethodNotAllowed:
		return e.Code == MethodNotAllowed
	}
	return false
}
