package biz

import (
	stderrors "errors"
	"fmt"

	"ProxyLane/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
)

// Error reasons exposed to API callers.
const (
	ReasonDuplicateProxy      = "PROXY_DUPLICATE"
	ReasonUnsupportedProtocol = "PROXY_UNSUPPORTED_PROTOCOL"
	ReasonInvalidProxy        = "PROXY_INVALID"
	ReasonNoAvailableProxy    = "NO_AVAILABLE_PROXY"
	ReasonProxyNotFound       = "PROXY_NOT_FOUND"
)

// ErrNoAvailableProxy is returned by selection when every proxy is cooling down or banned,
// or the pool is empty.
var ErrNoAvailableProxy = stderrors.New("no available proxy")

// DuplicateProxyError is returned when a proxy with the same address and port already exists.
type DuplicateProxyError struct {
	ID model.Identity
}

// Error implements the error interface.
func (e *DuplicateProxyError) Error() string {
	return fmt.Sprintf("proxy %s already exists", e.ID)
}

// UnsupportedProtocolError is returned when the protocol is outside the configured set.
type UnsupportedProtocolError struct {
	Protocol  string
	Supported []string
}

// Error implements the error interface.
func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("unsupported protocol %q, supported: %v", e.Protocol, e.Supported)
}

// InvalidProxyError is returned for a malformed address or an out of range port.
type InvalidProxyError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidProxyError) Error() string {
	return fmt.Sprintf("invalid proxy %s: %s", e.Field, e.Reason)
}

// ToAPIError maps a biz error to a kratos error carrying the HTTP status code.
// Errors it does not recognise are returned unchanged.
func ToAPIError(err error) error {
	if err == nil {
		return nil
	}

	var dup *DuplicateProxyError
	var proto *UnsupportedProtocolError
	var invalid *InvalidProxyError

	switch {
	case stderrors.As(err, &dup):
		return errors.Conflict(ReasonDuplicateProxy, dup.Error())
	case stderrors.As(err, &proto):
		return errors.BadRequest(ReasonUnsupportedProtocol, proto.Error())
	case stderrors.As(err, &invalid):
		return errors.BadRequest(ReasonInvalidProxy, invalid.Error())
	case stderrors.Is(err, ErrNoAvailableProxy):
		return errors.ServiceUnavailable(ReasonNoAvailableProxy, err.Error())
	default:
		return err
	}
}

// NewProxyNotFoundError is the API error for an unknown identity on explicit lookups.
func NewProxyNotFoundError(id model.Identity) error {
	return errors.NotFound(ReasonProxyNotFound, fmt.Sprintf("proxy %s not found", id))
}
