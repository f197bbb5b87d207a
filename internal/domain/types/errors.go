package types

import "errors"

var (
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrUnknownEvent        = errors.New("unknown event")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrLocationTimeout     = errors.New("location acquisition timed out")
	ErrRouteNotFound       = errors.New("route not found")
	ErrChannelClosed       = errors.New("transport channel closed")
	ErrBrokerClosed        = errors.New("broker closed")
)
