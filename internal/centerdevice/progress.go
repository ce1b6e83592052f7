package centerdevice

import (
	"io"
	"sync/atomic"
)

// ProgressFunc receives transfer progress. total is the full body size when
// known, or -1.
type ProgressFunc func(done, total int64)

// progressReader counts bytes read through it and reports them to fn.
type progressReader struct {
	r     io.Reader
	total int64
	done  atomic.Int64
	fn    ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		done := p.done.Add(int64(n))
		if p.fn != nil {
			p.fn(done, p.total)
		}
	}

	return n, err
}

// progressWriter counts bytes written through it and reports them to fn.
// err keeps the first write failure so callers can tell it apart from a
// failure on the read side of a copy.
type progressWriter struct {
	w     io.Writer
	total int64
	done  int64
	fn    ProgressFunc
	err   error
}

func newProgressWriter(w io.Writer, total int64, fn ProgressFunc) *progressWriter {
	return &progressWriter{w: w, total: total, fn: fn}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if err != nil && p.err == nil {
		p.err = err
	}

	if n > 0 {
		p.done += int64(n)
		if p.fn != nil {
			p.fn(p.done, p.total)
		}
	}

	return n, err
}

// Written returns the number of bytes written so far.
func (p *progressWriter) Written() int64 {
	return p.done
}
