package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/fulfillment/backend/internal/domain/shared"
)

// ErrorKind classifies a failed call to the carrier API
type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
	KindNotFound          ErrorKind = "not_found"
	KindTimeout           ErrorKind = "timeout"
	KindConnectionRefused ErrorKind = "connection_refused"
	KindNetwork           ErrorKind = "network"
	KindServerError       ErrorKind = "server_error"
	KindUnexpectedStatus  ErrorKind = "unexpected_status"
	KindInvalidResponse   ErrorKind = "invalid_response"
)

// ErrBaseURLNotConfigured is returned when neither the store nor the client has a base URL.
var ErrBaseURLNotConfigured = shared.NewDomainError(shared.CodeConfiguration, "upstream carrier API base URL is not configured")

// UpstreamError is a failed fetch from the carrier API for one store.
type UpstreamError struct {
	Kind       ErrorKind
	StoreKey   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	var msg string
	switch e.Kind {
	case KindUnauthorized:
		msg = "carrier API rejected the store credentials (401 Unauthorized)"
	case KindForbidden:
		msg = "store is not permitted to list carriers (403 Forbidden)"
	case KindNotFound:
		msg = "carrier listing endpoint not found (404 Not Found)"
	case KindTimeout:
		msg = "carrier API did not respond in time"
	case KindConnectionRefused:
		msg = "carrier API refused the connection"
	case KindNetwork:
		msg = "could not reach the carrier API"
	case KindServerError:
		msg = fmt.Sprintf("carrier API failed with HTTP %d", e.StatusCode)
	case KindUnexpectedStatus:
		msg = fmt.Sprintf("carrier API returned unexpected HTTP %d", e.StatusCode)
	case KindInvalidResponse:
		msg = "carrier API returned an unreadable response"
	default:
		msg = "carrier API call failed"
	}
	if e.StoreKey != "" {
		msg = fmt.Sprintf("store %s: %s", e.StoreKey, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the matching DomainError and the transport cause.
func (e *UpstreamError) Unwrap() []error {
	errs := []error{shared.NewDomainError(e.Code(), e.Error())}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsTransient reports whether retrying the whole sync later may succeed.
func (e *UpstreamError) IsTransient() bool {
	switch e.Kind {
	case KindTimeout, KindConnectionRefused, KindNetwork, KindServerError:
		return true
	default:
		return false
	}
}

// Code returns the domain error code for the failure
func (e *UpstreamError) Code() string {
	if e.IsTransient() {
		return shared.CodeUpstreamTransient
	}
	return shared.CodeUpstreamRejected
}

// IsTransient reports whether err is an UpstreamError worth retrying.
func IsTransient(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.IsTransient()
}

func statusError(storeKey string, status int) *UpstreamError {
	e := &UpstreamError{StoreKey: storeKey, StatusCode: status}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		e.Kind = KindTimeout
	case status >= http.StatusInternalServerError:
		e.Kind = KindServerError
	default:
		e.Kind = KindUnexpectedStatus
	}
	return e
}

func transportError(storeKey string, err error) *UpstreamError {
	e := &UpstreamError{StoreKey: storeKey, Err: err, Kind: KindNetwork}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Kind = KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		e.Kind = KindConnectionRefused
	}
	return e
}
