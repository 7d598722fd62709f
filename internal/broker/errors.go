package broker

import "fmt"

// NetworkError means the request failed, timed out or got a non-2xx answer.
type NetworkError struct {
	Attribute  string
	StatusCode int // zero when no response arrived
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %q: unexpected status %d", e.Attribute, e.StatusCode)
	}
	return fmt.Sprintf("fetch %q: %v", e.Attribute, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ShapeError means the response body did not have the expected nesting.
type ShapeError struct {
	Attribute string
	Reason    string
	Err       error
}

func (e *ShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %q: %s: %v", e.Attribute, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %q: %s", e.Attribute, e.Reason)
}

func (e *ShapeError) Unwrap() error { return e.Err }
