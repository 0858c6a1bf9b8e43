package client

import "fmt"

// ErrUnexpectedStatus is returned for any non-2xx answer of the remote API.
type ErrUnexpectedStatus struct {
	error
	StatusCode int
}

func NewErrUnexpectedStatus(endpoint string, statusCode int, body string) *ErrUnexpectedStatus {
	return &ErrUnexpectedStatus{
		error:      fmt.Errorf("%s returned status %d: %s", endpoint, statusCode, body),
		StatusCode: statusCode,
	}
}

// ErrDecode is returned when a 2xx body is not the JSON document the endpoint promises.
type ErrDecode struct {
	error
}

func NewErrDecode(endpoint string, err error) *ErrDecode {
	return &ErrDecode{fmt.Errorf("failed to decode %s response: %w", endpoint, err)}
}

func (e *ErrDecode) Unwrap() error {
	return e.error
}
