package recognition

import "fmt"

// TransientServiceError wraps a network-level failure (timeout,
// connection refused, 5xx) talking to one of the external recognition
// services — retried with backoff by the Recognizer (spec.md §4.5, §7).
type TransientServiceError struct {
	Service string
	Err     error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("service %s: transient error: %v", e.Service, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// PermanentServiceError wraps a 4xx response (bad API key, quota
// exhausted, malformed request). Never retried; the Recognizer falls
// through to the next service or to "no match" (spec.md §7).
type PermanentServiceError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *PermanentServiceError) Error() string {
	return fmt.Sprintf("service %s: permanent error (status %d): %s", e.Service, e.StatusCode, e.Body)
}

func classifyHTTPError(service string, status int, body string) error {
	if status >= 500 {
		return &TransientServiceError{Service: service, Err: fmt.Errorf("status %d", status)}
	}
	return &PermanentServiceError{Service: service, StatusCode: status, Body: body}
}
