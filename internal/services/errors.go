package services

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/moodring/backend/internal/shared"
	"golang.org/x/oauth2"
)

const maxErrorBody = 512

// TransportError is a failure to reach the provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, shared.ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{shared.ErrTransport, e.Err} }

// ProviderError is a non-2xx response from the provider.
type ProviderError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v: status %d: %s", e.Op, shared.ErrProvider, e.Status, e.Body)
}

func (e *ProviderError) Unwrap() error { return shared.ErrProvider }

// DecodeError is a 2xx response whose body could not be understood.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, shared.ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{shared.ErrDecode, e.Err} }

// classifyTokenError maps errors from the oauth2 package onto the typed errors.
func classifyTokenError(op string, err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		status := 0
		if retrieve.Response != nil {
			status = retrieve.Response.StatusCode
		}
		return &ProviderError{Op: op, Status: status, Body: truncate(string(retrieve.Body))}
	}
	if isTransport(err) {
		return &TransportError{Op: op, Err: err}
	}
	return &DecodeError{Op: op, Err: err}
}

func isTransport(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
