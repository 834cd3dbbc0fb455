package llm

// Stream is a lazy, finite sequence of text increments from one streaming
// generation call. Implementations live in pkg/llm/provider subpackages.
//
// A Stream is not restartable: once Recv returns io.EOF or an error, the
// stream is exhausted.
type Stream interface {
	// Recv blocks until the next text increment is available. Increments are
	// never empty; bookkeeping frames from the wire format are consumed
	// internally. Returns io.EOF on clean exhaustion and ErrStreamClosed
	// after Close.
	Recv() (string, error)

	// Close releases the underlying connection.
	Close() error
}
