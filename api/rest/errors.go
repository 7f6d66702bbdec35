package rest

import (
	"fmt"
)

// error codes let clients tell ledger side validation failures apart
const (
	CodeInvalidReceiver  = "invalid_receiver"
	CodeInvalidAmount    = "invalid_amount"
	CodeInvalidSignature = "invalid_signature"
	CodeInvalidInput     = "invalid_input"
	CodeNotFound         = "not_found"
	CodeInternal         = "internal"
)

// Err is the error returned by handlers, rendered as the json response body.
type Err struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

func (e *Err) Error() string {
	return e.Message
}

// NewErrf returns an Err with the given status code and a formatted message.
func NewErrf(statusCode int, format string, args ...any) *Err {
	return &Err{
		StatusCode: statusCode,
		Message:    fmt.Sprintf(format, args...),
	}
}

// WithCode sets the machine readable error code.
func (e *Err) WithCode(code string) *Err {
	e.Code = code
	return e
}
