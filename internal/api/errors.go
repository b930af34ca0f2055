package api

import (
	"errors"
	"fmt"
)

const maxBodyPreview = 256

// ErrNoData is matched by every failed or unusable response.
var ErrNoData = errors.New("api: no data")

// ResponseError describes a request that produced no usable JSON.
type ResponseError struct {
	Method   string
	Endpoint string
	Status   int
	Body     string
	Reason   string
	Err      error
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Endpoint, e.Reason)
	if e.Status > 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Body != "" {
		msg += " body=" + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResponseError) Unwrap() error { return e.Err }

func (e *ResponseError) Is(target error) bool { return target == ErrNoData }

// MissingFieldError reports a well-formed response lacking a required field.
type MissingFieldError struct {
	Endpoint string
	Field    string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing field %s", e.Endpoint, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrNoData }

func preview(body []byte) string {
	s := string(body)
	if len(s) > maxBodyPreview {
		return s[:maxBodyPreview] + "..."
	}
	return s
}
