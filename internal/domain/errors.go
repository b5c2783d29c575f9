package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrMalformedResponse = errors.New("malformed response")
	ErrInvalidQuote      = errors.New("invalid quote")
	ErrWSDisconnect      = errors.New("websocket disconnected")
)
