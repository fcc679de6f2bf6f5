// Package fetch pulls a submission's document bytes from the document source.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrFetchFailed covers every way a download can go wrong.
var ErrFetchFailed = errors.New("fetch failed")

const DefaultTimeout = 120 * time.Second

// Source downloads a file by its external id.
type Source interface {
	DownloadBytes(ctx context.Context, fileID string) ([]byte, error)
}

// Ref identifies the document to fetch.
type Ref struct {
	SubmissionID string
	FileID       string
	FileName     string
}

type Fetcher struct {
	src      Source
	timeout  time.Duration
	maxBytes int64
	log      *slog.Logger
}

type Option func(*Fetcher)

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBytes rejects documents larger than n bytes. 0 disables the check.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

func New(src Source, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{src: src, timeout: DefaultTimeout, log: logger}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch returns the document bytes for ref. Any error wraps ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if ref.FileID == "" {
		return nil, fmt.Errorf("%w: empty file id for submission %s", ErrFetchFailed, ref.SubmissionID)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	data, err := f.src.DownloadBytes(ctx, ref.FileID)
	if err != nil {
		f.log.Warn("pipeline.fetch.failed",
			"submission_id", ref.SubmissionID,
			"file_id", ref.FileID,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"err", err,
		)
		return nil, fmt.Errorf("%w: file_id=%s: %w", ErrFetchFailed, ref.FileID, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file_id=%s: empty document", ErrFetchFailed, ref.FileID)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: file_id=%s: %d bytes exceeds limit %d", ErrFetchFailed, ref.FileID, len(data), f.maxBytes)
	}

	f.log.Info("pipeline.fetch.ok",
		"submission_id", ref.SubmissionID,
		"file_id", ref.FileID,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}
