package store

import (
	"log/slog"

	"github.com/hupe1980/thickidx/codec"
	"github.com/hupe1980/thickidx/resource"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCompressor sets the compressor for newly written pages.
// Pages keep the compressor they were written with.
func WithCompressor(c codec.Compressor) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithResourceController sets the controller that bounds commit
// concurrency and IO.
func WithResourceController(rc *resource.Controller) Option {
	return func(s *Store) {
		s.rc = rc
	}
}

// WithReadOnly opens the store in read-only mode.
func WithReadOnly() Option {
	return func(s *Store) {
		s.readOnly = true
	}
}
