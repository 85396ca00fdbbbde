package logging

import (
	"bufio"
	"io"

	"github.com/rs/zerolog"
)

// LineWriter turns stream output into per-line zerolog events at a given
// level. Used to surface extractor subprocess chatter in the logs.
type LineWriter struct {
	logger zerolog.Logger
	level  zerolog.Level
}

// NewLineWriter attaches fields to every emitted line.
func NewLineWriter(logger zerolog.Logger, fields map[string]string, level zerolog.Level) *LineWriter {
	w := logger.With()
	for k, v := range fields {
		w = w.Str(k, v)
	}
	return &LineWriter{logger: w.Logger(), level: level}
}

// Pipe reads r to EOF, logging one event per line.
func (lw *LineWriter) Pipe(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lw.logger.WithLevel(lw.level).Msg(sc.Text())
	}
}
