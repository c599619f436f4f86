package logger

import (
	"errors"
	"io"
	"sync"
)

// sink writes whole lines to its writers under one lock, so lines from
// concurrent handlers never interleave.
type sink struct {
	mu      sync.Mutex
	writers []io.Writer
	closers []io.Closer
}

func newSink(writers ...io.Writer) *sink {
	s := &sink{}
	for _, w := range writers {
		if w != nil {
			s.writers = append(s.writers, w)
		}
	}
	return s
}

// own adds w and closes it on Close.
func (s *sink) own(w io.WriteCloser) {
	s.writers = append(s.writers, w)
	s.closers = append(s.closers, w)
}

func (s *sink) writeLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, w := range s.writers {
		if _, err := w.Write(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes the owned writers. Later lines are dropped.
func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.writers, s.closers = nil, nil
	return errors.Join(errs...)
}
