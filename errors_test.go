package thickidx

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/store"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	err := translateError(fmt.Errorf("load: %w", store.ErrNotFound))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = translateError(blobstore.ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	err = translateError(store.ErrTypeMismatch)
	assert.ErrorIs(t, err, ErrNotFound)

	pageErr := &store.PageError{OID: 3, Path: "objects/00000003-000001", Err: store.ErrCorrupt}
	err = translateError(pageErr)
	var corrupt *ErrCorrupt
	assert.True(t, errors.As(err, &corrupt))
	assert.Equal(t, "objects/00000003-000001", corrupt.Path)
	assert.ErrorIs(t, err, store.ErrCorrupt)

	other := errors.New("boom")
	assert.Equal(t, other, translateError(other))
	assert.ErrorIs(t, translateError(ErrKeyNotUnique), ErrKeyNotUnique)
}

func TestErrorLevel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want slog.Level
	}{
		{"not unique", fmt.Errorf("set: %w", ErrKeyNotUnique), slog.LevelWarn},
		{"key not found", ErrKeyNotFound, slog.LevelWarn},
		{"wrong kind", ErrInvalidArgument, slog.LevelWarn},
		{"read only", ErrReadOnly, slog.LevelWarn},
		{"index exists", ErrIndexExists, slog.LevelWarn},
		{"storage", errors.New("disk full"), slog.LevelError},
		{"corrupt", &ErrCorrupt{Path: "objects/1", cause: store.ErrCorrupt}, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorLevel(tt.err))
		})
	}
}

func TestBasicMetricsCollector(t *testing.T) {
	var m BasicMetricsCollector
	m.RecordPut(10, nil)
	m.RecordPut(30, errors.New("x"))
	m.RecordScan(5, 100, nil)
	m.RecordCommit(3, 50, nil)
	m.RecordCommit(3, 50, errors.New("x"))

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.PutCount)
	assert.Equal(t, int64(1), stats.PutErrors)
	assert.Equal(t, int64(20), stats.PutAvgNanos)
	assert.Equal(t, int64(5), stats.ScanValues)
	assert.Equal(t, int64(2), stats.CommitCount)
	assert.Equal(t, int64(1), stats.CommitErrors)
	assert.Equal(t, int64(3), stats.CommitObjects)
	assert.Equal(t, int64(0), (&BasicMetricsCollector{}).GetStats().ScanAvgNanos)
}
