package llm

import "errors"

// ErrStreamClosed is returned by a provider stream's Recv after Close.
var ErrStreamClosed = errors.New("stream closed")

// ErrorResponse is the JSON error envelope returned by the API server.
type ErrorResponse struct {
	Error string `json:"error"`
}
