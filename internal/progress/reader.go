// Package progress adapts io streams to job progress callbacks.
package progress

import (
	"io"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
)

// Reader counts bytes flowing through an upload stream and reports them as
// progress events. Events are emitted on whole-percent steps to keep the
// callback quiet on large files.
type Reader struct {
	r     io.Reader
	total int64
	read  int64
	phase domain.Phase
	fn    domain.ProgressFunc
	last  float64
}

// NewReader wraps r. A nil fn or non-positive total disables reporting.
func NewReader(r io.Reader, total int64, phase domain.Phase, fn domain.ProgressFunc) *Reader {
	return &Reader{r: r, total: total, phase: phase, fn: fn, last: -1}
}

func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.emit()
	}
	return n, err
}

func (p *Reader) emit() {
	if p.fn == nil || p.total <= 0 {
		return
	}
	fraction := float64(p.read) / float64(p.total)
	if fraction > 1 {
		fraction = 1
	}
	// whole-percent steps, and always the final byte
	if fraction-p.last < 0.01 && fraction < 1 {
		return
	}
	p.last = fraction
	p.fn(domain.ProgressEvent{Phase: p.phase, Fraction: fraction})
}
