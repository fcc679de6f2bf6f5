package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")

type fakeEngine struct {
	doc   *Document
	err   error
	panic bool
}

func (f fakeEngine) Name() string { return "fake" }

func (f fakeEngine) Convert(_ context.Context, _ []byte) (*Document, error) {
	if f.panic {
		panic("engine crashed")
	}
	return f.doc, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdapter_Extract(t *testing.T) {
	pool := NewPool(2, testLogger())
	t.Cleanup(pool.Close)

	tests := []struct {
		name      string
		engine    fakeEngine
		data      []byte
		wantPages int
		wantErr   bool
	}{
		{
			name: "three pages",
			engine: fakeEngine{doc: &Document{Pages: 3, Elements: []Element{
				Text{Page: 1, Content: "intro"},
				Table{Page: 2, Rows: [][]string{{"x"}}},
			}}},
			data:      samplePDF,
			wantPages: 3,
		},
		{name: "not a pdf", engine: fakeEngine{doc: &Document{Pages: 1}}, data: []byte("hello world"), wantErr: true},
		{name: "zero pages", engine: fakeEngine{doc: &Document{}}, data: samplePDF, wantErr: true},
		{name: "nil document", engine: fakeEngine{}, data: samplePDF, wantErr: true},
		{name: "engine error", engine: fakeEngine{err: errors.New("corrupt xref")}, data: samplePDF, wantErr: true},
		{name: "engine panic", engine: fakeEngine{panic: true}, data: samplePDF, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.engine, pool, testLogger())
			records, err := a.Extract(context.Background(), tt.data, "sub-1")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrExtractionFailed))
				assert.Nil(t, records)
				return
			}
			require.NoError(t, err)
			require.Len(t, records, tt.wantPages)
			for i, r := range records {
				assert.Equal(t, i+1, r.SlideNumber)
			}
		})
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := NewPool(2, testLogger())
	defer pool.Close()

	var running, peak atomic.Int32
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			errs <- pool.Submit(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, <-errs)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	pool := NewPool(1, testLogger())
	defer pool.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Submit(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestPool_Closed(t *testing.T) {
	pool := NewPool(1, testLogger())
	pool.Close()
	pool.Close()

	err := pool.Submit(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}
