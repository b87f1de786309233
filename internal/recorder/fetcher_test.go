package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"hls-recorder/internal/platform/httpclient"
)

// fakeFetcher serves scripted responses per URL. A handler receives the
// zero-based call count for its URL.
type fakeFetcher struct {
	mu       sync.Mutex
	handlers map[string]func(call int) ([]byte, error)
	calls    map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		handlers: make(map[string]func(int) ([]byte, error)),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) on(url string, h func(call int) ([]byte, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[url] = h
}

func (f *fakeFetcher) serve(url, body string) {
	f.on(url, func(int) ([]byte, error) { return []byte(body), nil })
}

// sequence serves bodies in order, repeating the last one.
func (f *fakeFetcher) sequence(url string, bodies ...string) {
	f.on(url, func(call int) ([]byte, error) {
		if call >= len(bodies) {
			call = len(bodies) - 1
		}
		return []byte(bodies[call]), nil
	})
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	h, ok := f.handlers[url]
	call := f.calls[url]
	f.calls[url]++
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("get %s: %w", url, httpclient.ErrNotFound)
	}
	return h(call)
}

// segmentBody is the deterministic payload of segment seq.
func segmentBody(seq int64, size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(seq) ^ byte(i)
	}
	b[0] = 0x47
	return b
}

// outputFiles returns the .ts files in dir sorted by name.
func outputFiles(t *testing.T, dir string) []string {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, "*.ts"))
	require.NoError(t, err)
	sort.Strings(paths)
	return paths
}

func concatFiles(t *testing.T, paths []string) []byte {
	t.Helper()
	var out []byte
	for _, p := range paths {
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		out = append(out, b...)
	}
	return out
}

// recordedEvents collects events for assertions.
type recordedEvents struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordedEvents) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordedEvents) kinds(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordedEvents) states() []State {
	var out []State
	for _, e := range r.kinds(EventState) {
		out = append(out, e.State)
	}
	return out
}
