package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	data  []byte
	err   error
	delay time.Duration
}

func (s stubSource) DownloadBytes(ctx context.Context, _ string) ([]byte, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.data, s.err
}

func TestFetch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ref := Ref{SubmissionID: "s1", FileID: "f1"}

	tests := []struct {
		name    string
		src     stubSource
		opts    []Option
		ref     Ref
		wantErr bool
	}{
		{name: "ok", src: stubSource{data: []byte("%PDF")}, ref: ref},
		{name: "source error", src: stubSource{err: errors.New("403 forbidden")}, ref: ref, wantErr: true},
		{name: "empty body", src: stubSource{data: nil}, ref: ref, wantErr: true},
		{name: "missing file id", src: stubSource{data: []byte("x")}, ref: Ref{SubmissionID: "s1"}, wantErr: true},
		{name: "oversize", src: stubSource{data: []byte("0123456789")}, opts: []Option{WithMaxBytes(4)}, ref: ref, wantErr: true},
		{
			name:    "timeout",
			src:     stubSource{data: []byte("x"), delay: time.Second},
			opts:    []Option{WithTimeout(10 * time.Millisecond)},
			ref:     ref,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.src, logger, tt.opts...)
			data, err := f.Fetch(context.Background(), tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrFetchFailed))
				assert.Nil(t, data)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.src.data, data)
		})
	}
}
