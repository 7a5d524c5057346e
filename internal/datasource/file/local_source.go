// Package file implements local filesystem sources and sinks.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"h1b/internal/datasource"
)

// OutputMode is the permission of files published through Create.
const OutputMode os.FileMode = 0o644

// Local is a filesystem path usable both as a datasource.Source and a
// datasource.Sink.
type Local struct{ path string }

var (
	_ datasource.Source = (*Local)(nil)
	_ datasource.Sink   = (*Local)(nil)
)

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the configured path for reading.
//
// If ctx is already done, Open returns the context error without touching the
// filesystem. Filesystem errors are wrapped with the path and still satisfy
// errors.Is checks such as os.ErrNotExist.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}

// Create opens a temporary file next to the configured path. Close renames it
// over the target; Abort removes it. A failed write therefore never leaves a
// truncated report at the target path.
func (l *Local) Create(ctx context.Context) (datasource.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, base := filepath.Split(l.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", l.path, err)
	}
	// CreateTemp uses 0600; published reports get the usual file mode.
	if err := tmp.Chmod(OutputMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("chmod %s: %w", l.path, err)
	}
	return &pendingFile{File: tmp, target: l.path}, nil
}

type pendingFile struct {
	*os.File
	target   string
	finished bool
	done     bool
}

func (p *pendingFile) Finish() error {
	if p.finished || p.done {
		return nil
	}
	p.finished = true
	if err := p.File.Close(); err != nil {
		p.done = true
		_ = os.Remove(p.File.Name())
		return fmt.Errorf("close %s: %w", p.target, err)
	}
	return nil
}

func (p *pendingFile) Close() error {
	if p.done {
		return nil
	}
	if err := p.Finish(); err != nil {
		return err
	}
	p.done = true
	if err := os.Rename(p.File.Name(), p.target); err != nil {
		_ = os.Remove(p.File.Name())
		return fmt.Errorf("rename into %s: %w", p.target, err)
	}
	return nil
}

func (p *pendingFile) Abort() error {
	if p.done {
		return nil
	}
	p.done = true
	if !p.finished {
		_ = p.File.Close()
	}
	if err := os.Remove(p.File.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard %s: %w", p.target, err)
	}
	return nil
}
