// Package datasource declares where pipeline bytes come from and go to.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw input for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Sink opens an output for writing. Closing the returned writer commits the
// output; Abort discards it.
type Sink interface {
	Create(ctx context.Context) (Output, error)
}

// Output is a writable destination that is only published on Close.
//
// Finish ends writing without publishing, so several outputs can be fully
// written before any of them becomes visible. Close publishes, calling Finish
// first if needed. Abort discards. All three are idempotent once the output is
// settled.
type Output interface {
	io.Writer
	Finish() error
	Close() error
	Abort() error
}
